package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lifeos",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifeos",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lifeos",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifeos",
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Total number of notifications created, by kind.",
		},
		[]string{"kind"},
	)

	assistantRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifeos",
			Subsystem: "assistant",
			Name:      "requests_total",
			Help:      "Total number of assistant operations.",
		},
		[]string{"op", "outcome"},
	)

	emailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifeos",
			Subsystem: "email",
			Name:      "messages_total",
			Help:      "Total number of outbound email attempts.",
		},
		[]string{"template", "outcome"},
	)

	paymentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifeos",
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Total number of payment webhook events processed.",
		},
		[]string{"provider", "outcome"},
	)

	rateRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifeos",
			Subsystem: "currency",
			Name:      "rate_refreshes_total",
			Help:      "Total number of exchange rate refresh attempts.",
		},
		[]string{"outcome"},
	)

	realtimeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lifeos",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Current number of open realtime connections.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		notificationsCreated,
		assistantRequests,
		emailsSent,
		paymentsProcessed,
		rateRefreshes,
		realtimeConnections,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordNotification records one created notification.
func RecordNotification(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	notificationsCreated.WithLabelValues(kind).Inc()
}

// RecordAssistantRequest records one assistant operation and its outcome.
func RecordAssistantRequest(op, outcome string) {
	assistantRequests.WithLabelValues(op, outcome).Inc()
}

// RecordEmail records one outbound email attempt.
func RecordEmail(template, outcome string) {
	if template == "" {
		template = "unknown"
	}
	emailsSent.WithLabelValues(template, outcome).Inc()
}

// RecordPaymentEvent records one processed payment webhook event.
func RecordPaymentEvent(provider, outcome string) {
	paymentsProcessed.WithLabelValues(provider, outcome).Inc()
}

// RecordRateRefresh records one exchange rate refresh attempt.
func RecordRateRefresh(ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	rateRefreshes.WithLabelValues(outcome).Inc()
}

// RealtimeConnected records a realtime connection opening.
func RealtimeConnected() { realtimeConnections.Inc() }

// RealtimeDisconnected records a realtime connection closing.
func RealtimeDisconnected() { realtimeConnections.Dec() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "me", "finance", "admin", "assistant", "currency", "webhooks":
		if len(parts) == 1 {
			return "/" + parts[0]
		}
		return "/" + parts[0] + "/" + parts[1]
	case "notifications":
		if len(parts) > 1 && parts[1] == "triggers" {
			return "/notifications/triggers"
		}
		return "/notifications"
	}
	return "/" + parts[0]
}
