package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
)

type ctxKey int

const ctxUserKey ctxKey = iota

// publicPaths skip authentication. Webhooks carry their own shared-secret
// checks; logout stays authenticated because it needs the live session.
var publicPaths = map[string]bool{
	"/auth/register": true,
	"/auth/login":    true,
	"/healthz":       true,
	"/metrics":       true,
}

func isPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/webhooks/")
}

// withAuth resolves the caller from a Bearer token (JWT plus live session),
// the token query parameter (websocket clients) or an X-API-Key header.
func (h *handler) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		var (
			u   user.User
			err error
		)
		token := bearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		switch {
		case token != "":
			u, err = h.app.Users.Authenticate(r.Context(), token)
		case r.Header.Get("X-API-Key") != "":
			u, err = h.app.Users.AuthenticateAPIKey(r.Context(), r.Header.Get("X-API-Key"))
		default:
			err = fmt.Errorf("authentication required")
		}
		if err != nil {
			h.auditRequest(r, user.User{}, http.StatusUnauthorized, "auth failed")
			writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the authenticated user stored by withAuth.
func currentUser(r *http.Request) (user.User, bool) {
	u, ok := r.Context().Value(ctxUserKey).(user.User)
	return u, ok
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// withRateLimit applies a per-client token bucket keyed by remote address.
// Zero or negative limits disable the middleware.
func (h *handler) withRateLimit(next http.Handler, requestsPerMinute int) http.Handler {
	if requestsPerMinute <= 0 {
		return next
	}
	burst := requestsPerMinute / 10
	if burst < 5 {
		burst = 5
	}
	limit := rate.Limit(float64(requestsPerMinute) / 60.0)

	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		// Drop the map when it grows unreasonably; per-key eviction is not
		// worth the bookkeeping at this scale.
		if len(limiters) > 10000 {
			limiters = make(map[string]*rate.Limiter)
		}
		lim, ok := limiters[key]
		if !ok {
			lim = rate.NewLimiter(limit, burst)
			limiters[key] = lim
		}
		return lim
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientAddr(r)
		if !limiterFor(key).Allow() {
			h.log.WithField("client", key).Warn("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// withCORS reflects allowed origins and answers preflight requests. An empty
// origin list leaves cross-origin requests blocked by the browser.
func withCORS(next http.Handler, allowedOrigins []string) http.Handler {
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
	}
	allowed := func(origin string) bool {
		if origin == "" {
			return false
		}
		if allowAll {
			return true
		}
		for _, candidate := range allowedOrigins {
			if candidate == origin {
				return true
			}
		}
		return false
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
