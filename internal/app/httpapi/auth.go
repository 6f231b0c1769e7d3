package httpapi

import (
	"fmt"
	"net/http"

	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
)

// auth handles the unauthenticated entry points plus logout.
func (h *handler) auth(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/auth")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch parts[0] {
	case "register":
		var payload struct {
			Email       string `json:"email"`
			Password    string `json:"password"`
			DisplayName string `json:"display_name"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		u, token, err := h.app.Users.Register(r.Context(), payload.Email, payload.Password, payload.DisplayName)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		h.auditRequest(r, u, http.StatusCreated, "registered")
		writeJSON(w, http.StatusCreated, authResponse{Token: token, User: u})

	case "login":
		var payload struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		u, token, err := h.app.Users.Login(r.Context(), payload.Email, payload.Password)
		if err != nil {
			h.auditRequest(r, user.User{Email: payload.Email}, http.StatusUnauthorized, "login failed")
			h.writeServiceError(w, err)
			return
		}
		h.auditRequest(r, u, http.StatusOK, "logged in")
		writeJSON(w, http.StatusOK, authResponse{Token: token, User: u})

	case "logout":
		u, _ := currentUser(r)
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("bearer token required"))
			return
		}
		if err := h.app.Users.Logout(r.Context(), token); err != nil {
			h.writeServiceError(w, err)
			return
		}
		h.auditRequest(r, u, http.StatusNoContent, "logged out")
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type authResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// me serves the authenticated user's own profile.
func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, u)
	case http.MethodPatch:
		var payload struct {
			DisplayName     *string `json:"display_name"`
			Timezone        *string `json:"timezone"`
			DisplayCurrency *string `json:"display_currency"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Users.UpdateProfile(r.Context(), u.ID, payload.DisplayName, payload.Timezone, payload.DisplayCurrency)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// meResources covers the sub-resources under /me.
func (h *handler) meResources(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	parts := pathParts(r.URL.Path, "/me")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "entitlements":
		if r.Method != http.MethodGet || len(parts) != 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.app.Entitlements.Evaluate(r.Context(), u))

	case "password":
		if r.Method != http.MethodPost || len(parts) != 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.app.Users.ChangePassword(r.Context(), u.ID, payload.CurrentPassword, payload.NewPassword); err != nil {
			h.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "api-keys":
		h.apiKeys(w, r, u, parts[1:])

	case "payments":
		if r.Method != http.MethodGet || len(parts) != 1 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		payments, err := h.app.Billing.ListPayments(r.Context(), u.ID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payments)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) apiKeys(w http.ResponseWriter, r *http.Request, u user.User, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			keys, err := h.app.Users.ListAPIKeys(r.Context(), u.ID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, keys)
		case http.MethodPost:
			var payload struct {
				Name string `json:"name"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			key, plaintext, err := h.app.Users.CreateAPIKey(r.Context(), u.ID, payload.Name)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			// The plaintext key appears in this response only; it is stored
			// hashed.
			writeJSON(w, http.StatusCreated, struct {
				Key    string      `json:"key"`
				APIKey user.APIKey `json:"api_key"`
			}{Key: plaintext, APIKey: key})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case 1:
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := h.app.Users.DeleteAPIKey(r.Context(), u.ID, rest[0]); err != nil {
			h.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
