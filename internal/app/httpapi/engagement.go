package httpapi

import (
	"fmt"
	"net/http"

	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
)

func (h *handler) notifications(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, err := h.app.Notifications.List(r.Context(), u.ID, unreadOnly, queryInt(r, "limit", 0))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) notificationResources(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	parts := pathParts(r.URL.Path, "/notifications")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "read-all":
		if r.Method != http.MethodPost || len(parts) != 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		updated, err := h.app.Notifications.MarkAllRead(r.Context(), u.ID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"updated": updated})

	case "triggers":
		h.notificationTriggers(w, r, u, parts[1:])

	default:
		id := parts[0]
		switch {
		case len(parts) == 2 && parts[1] == "read":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			n, err := h.app.Notifications.MarkRead(r.Context(), u.ID, id)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, n)
		case len(parts) == 1:
			if r.Method != http.MethodDelete {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if err := h.app.Notifications.Delete(r.Context(), u.ID, id); err != nil {
				h.writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (h *handler) notificationTriggers(w http.ResponseWriter, r *http.Request, u user.User, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			triggers, err := h.app.Notifications.ListTriggers(r.Context(), u.ID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, triggers)
		case http.MethodPost:
			var payload struct {
				Kind    string                 `json:"kind"`
				Params  map[string]interface{} `json:"params"`
				Hour    int                    `json:"hour"`
				Enabled *bool                  `json:"enabled"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			enabled := true
			if payload.Enabled != nil {
				enabled = *payload.Enabled
			}
			created, err := h.app.Notifications.CreateTrigger(r.Context(), u.ID, payload.Kind, payload.Params, payload.Hour, enabled)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case 1:
		id := rest[0]
		switch r.Method {
		case http.MethodGet:
			trigger, err := h.app.Notifications.GetTrigger(r.Context(), u.ID, id)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, trigger)
		case http.MethodPatch:
			var payload struct {
				Params  map[string]interface{} `json:"params"`
				Hour    *int                   `json:"hour"`
				Enabled *bool                  `json:"enabled"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			trigger, err := h.app.Notifications.UpdateTrigger(r.Context(), u.ID, id, payload.Params, payload.Hour, payload.Enabled)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, trigger)
		case http.MethodDelete:
			if err := h.app.Notifications.DeleteTrigger(r.Context(), u.ID, id); err != nil {
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

func (h *handler) assistant(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	parts := pathParts(r.URL.Path, "/assistant")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "personas":
		if r.Method != http.MethodGet || len(parts) != 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		personas, err := h.app.Assistant.ListPersonas(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, personas)

	case "chat":
		if r.Method != http.MethodPost || len(parts) != 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			PersonaID      string `json:"persona_id"`
			ConversationID string `json:"conversation_id"`
			Text           string `json:"text"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		msg, err := h.app.Assistant.Chat(r.Context(), u, payload.PersonaID, payload.ConversationID, payload.Text)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)

	case "conversations":
		switch len(parts) {
		case 1:
			if r.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			convs, err := h.app.Assistant.Conversations(r.Context(), u)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, convs)
		case 2:
			switch r.Method {
			case http.MethodGet:
				msgs, err := h.app.Assistant.Messages(r.Context(), u, parts[1])
				if err != nil {
					h.writeServiceError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, msgs)
			case http.MethodDelete:
				if err := h.app.Assistant.DeleteConversation(r.Context(), u, parts[1]); err != nil {
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

	case "categorize":
		if r.Method != http.MethodPost || len(parts) != 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Description string  `json:"description"`
			Amount      float64 `json:"amount"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		suggestion, err := h.app.Assistant.Categorize(r.Context(), u, payload.Description, payload.Amount)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, suggestion)

	case "schedule":
		if r.Method != http.MethodPost || len(parts) != 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Date string `json:"date"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		blocks, err := h.app.Assistant.Schedule(r.Context(), u, payload.Date)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, blocks)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) tickets(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := h.app.Tickets.List(r.Context(), u.ID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var payload struct {
			Subject string `json:"subject"`
			Body    string `json:"body"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Tickets.Create(r.Context(), u.ID, payload.Subject, payload.Body)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) ticketResources(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	parts := pathParts(r.URL.Path, "/tickets")
	if len(parts) != 1 || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	ticket, err := h.app.Tickets.Get(r.Context(), u.ID, parts[0])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}
