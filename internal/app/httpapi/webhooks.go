package httpapi

import (
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lifeos-hq/lifeos/internal/app/domain/billing"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	billingsvc "github.com/lifeos-hq/lifeos/internal/app/services/billing"
)

// maxWebhookBody caps provider payloads.
const maxWebhookBody = 1 << 20

// webhooks dispatches the unauthenticated provider callbacks. Each carries
// its own shared-secret or signature check.
func (h *handler) webhooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r.URL.Path, "/webhooks")
	switch {
	case len(parts) == 1 && parts[0] == "email":
		h.emailWebhook(w, r)
	case len(parts) == 2 && parts[0] == "payments":
		h.paymentWebhook(w, r, parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) paymentWebhook(w http.ResponseWriter, r *http.Request, provider string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	defer r.Body.Close()

	var (
		payment billing.Payment
		handled bool
	)
	switch provider {
	case "paystack":
		payment, handled, err = h.app.Billing.HandlePaystack(r.Context(), r.Header.Get("X-Paystack-Signature"), body)
	case "flutterwave":
		payment, handled, err = h.app.Billing.HandleFlutterwave(r.Context(), r.Header.Get("verif-hash"), body)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	caller := user.User{Email: provider}
	if err != nil {
		detail := "error"
		if errors.Is(err, billingsvc.ErrBadSignature) {
			detail = "bad signature"
		}
		h.auditRequest(r, caller, statusForWebhookError(err), detail)
		h.writeServiceError(w, err)
		return
	}
	detail := "acknowledged"
	if handled {
		detail = "settled " + payment.Reference
	}
	h.auditRequest(r, caller, http.StatusOK, detail)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusForWebhookError(err error) int {
	switch {
	case errors.Is(err, billingsvc.ErrBadSignature):
		return http.StatusUnauthorized
	case errors.Is(err, billingsvc.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, billingsvc.ErrProviderFailure):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// emailWebhook ingests delivery events from the email provider. Unknown
// message ids are acknowledged so the provider stops retrying.
func (h *handler) emailWebhook(w http.ResponseWriter, r *http.Request) {
	caller := user.User{Email: "email-provider"}
	if h.emailToken == "" {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("email webhook not configured"))
		return
	}
	token := r.Header.Get("X-Webhook-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.emailToken)) != 1 {
		h.auditRequest(r, caller, http.StatusUnauthorized, "bad token")
		writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid webhook token"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	defer r.Body.Close()

	// Providers attach fields we do not model; decode leniently.
	var payload struct {
		Type string `json:"type"`
		Data struct {
			EmailID string `json:"email_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("email webhook: %w", err))
		return
	}

	switch payload.Type {
	case "email.delivered":
		if _, err := h.app.Mailer.MarkDelivered(r.Context(), payload.Data.EmailID); err != nil {
			h.ackUnknownEmail(w, r, caller, payload.Data.EmailID, err)
			return
		}
	case "email.bounced", "email.complained":
		msg, err := h.app.Mailer.MarkBounced(r.Context(), payload.Data.EmailID)
		if err != nil {
			h.ackUnknownEmail(w, r, caller, payload.Data.EmailID, err)
			return
		}
		if msg.UserID != "" {
			if _, err := h.app.Notifications.Notify(r.Context(), msg.UserID, "email", "Email delivery failed",
				fmt.Sprintf("We could not deliver %q to %s.", msg.Subject, msg.To), "/settings", "webhook"); err != nil {
				h.log.WithError(err).Warn("bounce notification failed")
			}
		}
	default:
		h.log.WithField("type", payload.Type).Debug("email webhook event ignored")
	}

	h.auditRequest(r, caller, http.StatusOK, payload.Type)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ackUnknownEmail turns a missing message row into a 200 so the provider
// does not retry an event no retry can land. Other errors surface.
func (h *handler) ackUnknownEmail(w http.ResponseWriter, r *http.Request, caller user.User, emailID string, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		h.log.WithField("email_id", emailID).Warn("email webhook for unknown message")
		h.auditRequest(r, caller, http.StatusOK, "unknown email id")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	h.writeServiceError(w, err)
}
