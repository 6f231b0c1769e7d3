package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/finance"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
)

// finance routes /finance/* to the resource handlers.
func (h *handler) finance(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	parts := pathParts(r.URL.Path, "/finance")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "accounts":
		h.financeAccounts(w, r, u, parts[1:])
	case "transactions":
		h.financeTransactions(w, r, u, parts[1:])
	case "goals":
		h.financeGoals(w, r, u, parts[1:])
	case "subscriptions":
		h.financeSubscriptions(w, r, u, parts[1:])
	case "summary":
		if r.Method != http.MethodGet || len(parts) != 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		summary, err := h.app.Finance.Summary(r.Context(), u.ID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) financeAccounts(w http.ResponseWriter, r *http.Request, u user.User, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			accounts, err := h.app.Finance.ListAccounts(r.Context(), u.ID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, accounts)
		case http.MethodPost:
			var payload struct {
				Name           string  `json:"name"`
				Institution    string  `json:"institution"`
				Kind           string  `json:"kind"`
				Currency       string  `json:"currency"`
				OpeningBalance float64 `json:"opening_balance"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Finance.CreateAccount(r.Context(), u.ID, payload.Name, payload.Institution, payload.Kind, payload.Currency, payload.OpeningBalance)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case 1:
		accountID := rest[0]
		switch r.Method {
		case http.MethodGet:
			acct, err := h.app.Finance.GetAccount(r.Context(), u.ID, accountID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, acct)
		case http.MethodPatch:
			var payload struct {
				Name        *string `json:"name"`
				Institution *string `json:"institution"`
				Kind        *string `json:"kind"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			acct, err := h.app.Finance.UpdateAccount(r.Context(), u.ID, accountID, payload.Name, payload.Institution, payload.Kind)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, acct)
		case http.MethodDelete:
			if err := h.app.Finance.DeleteAccount(r.Context(), u.ID, accountID); err != nil {
				h.writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case 2:
		if rest[1] != "primary" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		acct, err := h.app.Finance.SetPrimary(r.Context(), u.ID, rest[0])
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, acct)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) financeTransactions(w http.ResponseWriter, r *http.Request, u user.User, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			txs, err := h.app.Finance.ListTransactions(r.Context(), u.ID, q.Get("account_id"), q.Get("kind"), q.Get("category"), q.Get("month"))
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, txs)
		case http.MethodPost:
			var payload struct {
				AccountID        string     `json:"account_id"`
				Kind             string     `json:"kind"`
				Category         string     `json:"category"`
				Description      string     `json:"description"`
				CounterAccountID string     `json:"counter_account_id"`
				Currency         string     `json:"currency"`
				Amount           float64    `json:"amount"`
				OccurredAt       *time.Time `json:"occurred_at"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Finance.CreateTransaction(r.Context(), u.ID, payload.AccountID, payload.Kind, payload.Category, payload.Description, payload.CounterAccountID, payload.Currency, payload.Amount, payload.OccurredAt)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case 1:
		txID := rest[0]
		switch r.Method {
		case http.MethodGet:
			tx, err := h.app.Finance.GetTransaction(r.Context(), u.ID, txID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, tx)
		case http.MethodPatch:
			var payload struct {
				Category    *string    `json:"category"`
				Description *string    `json:"description"`
				OccurredAt  *time.Time `json:"occurred_at"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			tx, err := h.app.Finance.UpdateTransaction(r.Context(), u.ID, txID, payload.Category, payload.Description, payload.OccurredAt)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, tx)
		case http.MethodDelete:
			if err := h.app.Finance.DeleteTransaction(r.Context(), u.ID, txID); err != nil {
				h.writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) financeGoals(w http.ResponseWriter, r *http.Request, u user.User, rest []string) {
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			goals, err := h.app.Finance.ListGoals(r.Context(), u.ID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, goals)
		case http.MethodPost:
			var payload struct {
				Name         string     `json:"name"`
				TargetAmount float64    `json:"target_amount"`
				Deadline     *time.Time `json:"deadline"`
				AccountID    string     `json:"account_id"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Finance.CreateGoal(r.Context(), u.ID, payload.Name, payload.TargetAmount, payload.Deadline, payload.AccountID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case len(rest) == 1:
		goalID := rest[0]
		switch r.Method {
		case http.MethodGet:
			goal, err := h.app.Finance.GetGoal(r.Context(), u.ID, goalID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, goal)
		case http.MethodPatch:
			var payload struct {
				Name         *string    `json:"name"`
				TargetAmount *float64   `json:"target_amount"`
				Deadline     *time.Time `json:"deadline"`
				AccountID    *string    `json:"account_id"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			goal, err := h.app.Finance.UpdateGoal(r.Context(), u.ID, goalID, payload.Name, payload.TargetAmount, payload.Deadline, payload.AccountID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, goal)
		case http.MethodDelete:
			if err := h.app.Finance.DeleteGoal(r.Context(), u.ID, goalID); err != nil {
				h.writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case len(rest) == 2 && rest[1] == "entries":
		goalID := rest[0]
		switch r.Method {
		case http.MethodGet:
			entries, err := h.app.Finance.ListEntries(r.Context(), u.ID, goalID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, entries)
		case http.MethodPost:
			var payload struct {
				Amount float64 `json:"amount"`
				Note   string  `json:"note"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			entry, goal, err := h.app.Finance.AddEntry(r.Context(), u.ID, goalID, payload.Amount, payload.Note)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, struct {
				Entry finance.SavingsEntry `json:"entry"`
				Goal  finance.SavingsGoal  `json:"goal"`
			}{Entry: entry, Goal: goal})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case len(rest) == 3 && rest[1] == "entries":
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		goal, err := h.app.Finance.DeleteEntry(r.Context(), u.ID, rest[0], rest[2])
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, goal)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) financeSubscriptions(w http.ResponseWriter, r *http.Request, u user.User, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			// upcoming_days narrows the listing to active subscriptions
			// billing inside the window, soonest first.
			if raw := r.URL.Query().Get("upcoming_days"); raw != "" {
				days, err := strconv.Atoi(raw)
				if err != nil {
					writeError(w, http.StatusBadRequest, fmt.Errorf("upcoming_days must be an integer"))
					return
				}
				subs, err := h.app.Finance.ListUpcoming(r.Context(), u.ID, days)
				if err != nil {
					h.writeServiceError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, subs)
				return
			}
			subs, err := h.app.Finance.ListSubscriptions(r.Context(), u.ID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, subs)
		case http.MethodPost:
			var payload struct {
				Name            string    `json:"name"`
				Amount          float64   `json:"amount"`
				Currency        string    `json:"currency"`
				Cadence         string    `json:"cadence"`
				NextBillingDate time.Time `json:"next_billing_date"`
				AccountID       string    `json:"account_id"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Finance.CreateSubscription(r.Context(), u.ID, payload.Name, payload.Amount, payload.Currency, payload.Cadence, payload.NextBillingDate, payload.AccountID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case 1:
		subID := rest[0]
		switch r.Method {
		case http.MethodGet:
			sub, err := h.app.Finance.GetSubscription(r.Context(), u.ID, subID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, sub)
		case http.MethodPatch:
			var payload struct {
				Name            *string    `json:"name"`
				Amount          *float64   `json:"amount"`
				Cadence         *string    `json:"cadence"`
				NextBillingDate *time.Time `json:"next_billing_date"`
				AccountID       *string    `json:"account_id"`
				Active          *bool      `json:"active"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			sub, err := h.app.Finance.UpdateSubscription(r.Context(), u.ID, subID, payload.Name, payload.Amount, payload.Cadence, payload.NextBillingDate, payload.AccountID, payload.Active)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, sub)
		case http.MethodDelete:
			if err := h.app.Finance.DeleteSubscription(r.Context(), u.ID, subID); err != nil {
				h.writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case 2:
		if rest[1] != "paid" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		sub, err := h.app.Finance.MarkPaid(r.Context(), u.ID, rest[0])
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// currency serves the read-only rate endpoints. Upserts live under /admin.
func (h *handler) currency(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(r); !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	parts := pathParts(r.URL.Path, "/currency")
	if len(parts) != 1 || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "rates":
		rates, err := h.app.Currency.ListRates(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rates)
	case "convert":
		q := r.URL.Query()
		amount, err := strconv.ParseFloat(q.Get("amount"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("amount must be a number"))
			return
		}
		converted, err := h.app.Currency.Convert(r.Context(), amount, q.Get("from"), q.Get("to"))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Amount    float64 `json:"amount"`
			From      string  `json:"from"`
			To        string  `json:"to"`
			Converted float64 `json:"converted"`
		}{Amount: amount, From: q.Get("from"), To: q.Get("to"), Converted: converted})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
