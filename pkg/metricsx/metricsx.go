// Package metricsx registers the service's Prometheus metrics and provides the
// HTTP instrumentation middleware and /metrics handler.
package metricsx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Login attempts by actor kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	lockoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_lockouts_total",
			Help: "Lockout decisions returned to callers.",
		},
		[]string{"kind"},
	)

	auditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Audit entries dropped because the store write failed.",
		},
	)

	securityEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_events_total",
			Help: "Security events recorded, by event type.",
		},
		[]string{"type"},
	)
)

// Init registers all metrics with the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		loginAttemptsTotal,
		lockoutsTotal,
		auditWriteFailures,
		securityEventsTotal,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin records a login attempt outcome ("success", "invalid_credentials",
// "locked", "mfa_required", ...).
func ObserveLogin(kind, outcome string) {
	loginAttemptsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveLockout records a lockout decision returned to a caller.
func ObserveLockout(kind string) {
	lockoutsTotal.WithLabelValues(kind).Inc()
}

// ObserveAuditWriteFailure counts a dropped audit entry.
func ObserveAuditWriteFailure() {
	auditWriteFailures.Inc()
}

// ObserveSecurityEvent counts a recorded security event.
func ObserveSecurityEvent(eventType string) {
	securityEventsTotal.WithLabelValues(eventType).Inc()
}

// Instrument measures request counts and latencies around next.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).
			Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
