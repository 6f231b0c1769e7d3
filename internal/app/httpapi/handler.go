// Package httpapi exposes the application services as a JSON REST API.
// Requests pass metrics, CORS, rate-limit and auth middleware before the
// route handlers run; service sentinel errors map to HTTP statuses in one
// place.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/lifeos-hq/lifeos/internal/app"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/metrics"
	"github.com/lifeos-hq/lifeos/internal/app/services/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/services/billing"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
	"github.com/lifeos-hq/lifeos/internal/app/services/finance"
	"github.com/lifeos-hq/lifeos/internal/app/services/users"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Options tunes the HTTP layer. The zero value serves with CORS closed, a
// generous rate limit and webhooks that require configuration.
type Options struct {
	AllowedOrigins    []string
	RequestsPerMinute int
	EmailWebhookToken string
	AuditLogPath      string
	Log               *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app        *app.Application
	log        *logger.Logger
	audit      *auditLog
	emailToken string
}

// NewHandler returns the full middleware-wrapped REST API.
func NewHandler(application *app.Application, opts Options) (http.Handler, error) {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	sink, err := newFileAuditSink(opts.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	h := &handler{
		app:        application,
		log:        log,
		audit:      newAuditLog(0, sink),
		emailToken: opts.EmailWebhookToken,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthz)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/realtime", h.realtime)
	mux.HandleFunc("/auth/", h.auth)
	mux.HandleFunc("/me", h.me)
	mux.HandleFunc("/me/", h.meResources)
	mux.HandleFunc("/tasks", h.tasks)
	mux.HandleFunc("/tasks/", h.taskResources)
	mux.HandleFunc("/systems", h.systems)
	mux.HandleFunc("/systems/", h.systemResources)
	mux.HandleFunc("/habits/", h.habitResources)
	mux.HandleFunc("/journal", h.journal)
	mux.HandleFunc("/journal/", h.journalResources)
	mux.HandleFunc("/finance/", h.finance)
	mux.HandleFunc("/currency/", h.currency)
	mux.HandleFunc("/notifications", h.notifications)
	mux.HandleFunc("/notifications/", h.notificationResources)
	mux.HandleFunc("/assistant/", h.assistant)
	mux.HandleFunc("/tickets", h.tickets)
	mux.HandleFunc("/tickets/", h.ticketResources)
	mux.HandleFunc("/admin/", h.admin)
	mux.HandleFunc("/webhooks/", h.webhooks)

	chain := h.withAuth(mux)
	chain = h.withRateLimit(chain, opts.RequestsPerMinute)
	chain = withCORS(chain, opts.AllowedOrigins)
	return metrics.InstrumentHandler(chain), nil
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// realtime upgrades to a websocket after the sync entitlement check. Auth ran
// in the middleware; browsers pass the token as a query parameter instead of
// a header.
func (h *handler) realtime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return
	}
	if err := h.app.Entitlements.Require(r.Context(), u, entitlements.FeatureRealtimeSync); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if err := h.app.Hub.Serve(w, r, u.ID); err != nil {
		h.log.WithError(err).Debug("realtime upgrade failed")
	}
}

// writeServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognised is treated as a bad request.
func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, users.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, users.ErrEmailTaken):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, entitlements.ErrNotEntitled):
		writeError(w, http.StatusForbidden, entitlements.ErrNotEntitled)
	case errors.Is(err, finance.ErrAccountInUse):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, assistant.ErrGatewayFailure):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, billing.ErrBadSignature):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, billing.ErrProviderFailure):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, billing.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

// requireAdmin returns the calling user when they hold the admin role.
func (h *handler) requireAdmin(w http.ResponseWriter, r *http.Request) (user.User, bool) {
	u, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return user.User{}, false
	}
	if u.Role != user.RoleAdmin {
		writeError(w, http.StatusForbidden, fmt.Errorf("admin role required"))
		return user.User{}, false
	}
	return u, true
}

func (h *handler) auditRequest(r *http.Request, u user.User, status int, detail string) {
	h.audit.add(auditEntry{
		Time:       time.Now().UTC(),
		User:       u.Email,
		Role:       u.Role,
		Path:       r.URL.Path,
		Method:     r.Method,
		Status:     status,
		Detail:     detail,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
}

// pathParts splits the path after prefix into segments. An empty remainder
// yields a nil slice.
func pathParts(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
