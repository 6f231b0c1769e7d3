package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
)

// admin serves the management surface. Every route requires the admin role;
// mutations land in the audit log.
func (h *handler) admin(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	parts := pathParts(r.URL.Path, "/admin")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "users":
		h.adminUsers(w, r, u, parts[1:])
	case "settings":
		h.adminSettings(w, r, u, parts[1:])
	case "personas":
		h.adminPersonas(w, r, u, parts[1:])
	case "tickets":
		h.adminTickets(w, r, u, parts[1:])
	case "currency":
		h.adminCurrency(w, r, u, parts[1:])
	case "audit":
		if r.Method != http.MethodGet || len(parts) != 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.audit.listLimit(queryInt(r, "limit", 0)))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) adminUsers(w http.ResponseWriter, r *http.Request, admin user.User, rest []string) {
	switch len(rest) {
	case 0:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		list, err := h.app.Users.ListUsers(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case 1:
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Plan *string `json:"plan"`
			Role *string `json:"role"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if payload.Plan == nil && payload.Role == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("plan or role is required"))
			return
		}
		var (
			updated user.User
			err     error
		)
		if payload.Plan != nil {
			updated, err = h.app.Users.SetPlan(r.Context(), rest[0], *payload.Plan)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
		}
		if payload.Role != nil {
			updated, err = h.app.Users.SetRole(r.Context(), rest[0], *payload.Role)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
		}
		h.auditRequest(r, admin, http.StatusOK, "user "+rest[0]+" updated")
		writeJSON(w, http.StatusOK, updated)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) adminSettings(w http.ResponseWriter, r *http.Request, admin user.User, rest []string) {
	if len(rest) != 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := h.app.Entitlements.GetSettings(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var payload struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		setting, err := h.app.Entitlements.PutSetting(r.Context(), payload.Key, payload.Value, admin.ID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		h.auditRequest(r, admin, http.StatusOK, "setting "+payload.Key+" updated")
		writeJSON(w, http.StatusOK, setting)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) adminPersonas(w http.ResponseWriter, r *http.Request, admin user.User, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			personas, err := h.app.Assistant.ListPersonas(r.Context())
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, personas)
		case http.MethodPost:
			var payload struct {
				Name         string `json:"name"`
				Tagline      string `json:"tagline"`
				SystemPrompt string `json:"system_prompt"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Assistant.CreatePersona(r.Context(), payload.Name, payload.Tagline, payload.SystemPrompt)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			h.auditRequest(r, admin, http.StatusCreated, "persona created")
			writeJSON(w, http.StatusCreated, created)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case 1:
		switch r.Method {
		case http.MethodPatch:
			var payload struct {
				Name         *string `json:"name"`
				Tagline      *string `json:"tagline"`
				SystemPrompt *string `json:"system_prompt"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			updated, err := h.app.Assistant.UpdatePersona(r.Context(), rest[0], payload.Name, payload.Tagline, payload.SystemPrompt)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			h.auditRequest(r, admin, http.StatusOK, "persona "+rest[0]+" updated")
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if err := h.app.Assistant.DeletePersona(r.Context(), rest[0]); err != nil {
				h.writeServiceError(w, err)
				return
			}
			h.auditRequest(r, admin, http.StatusNoContent, "persona "+rest[0]+" deleted")
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) adminTickets(w http.ResponseWriter, r *http.Request, admin user.User, rest []string) {
	switch len(rest) {
	case 0:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		list, err := h.app.Tickets.ListAll(r.Context(), r.URL.Query().Get("status"))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case 1:
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Status *string `json:"status"`
			Reply  *string `json:"reply"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Tickets.Update(r.Context(), admin.ID, rest[0], payload.Status, payload.Reply)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		h.auditRequest(r, admin, http.StatusOK, "ticket "+rest[0]+" updated")
		writeJSON(w, http.StatusOK, updated)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) adminCurrency(w http.ResponseWriter, r *http.Request, admin user.User, rest []string) {
	if len(rest) != 1 || rest[0] != "rates" || r.Method != http.MethodPut {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var payload struct {
		Code string  `json:"code"`
		Rate float64 `json:"rate"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rate, err := h.app.Currency.UpsertRate(r.Context(), payload.Code, payload.Rate, "admin")
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.auditRequest(r, admin, http.StatusOK, "rate "+rate.Code+" upserted")
	writeJSON(w, http.StatusOK, rate)
}
