package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

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

	guardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_decisions_total",
			Help: "Route guard authorization decisions.",
		},
		[]string{"outcome"},
	)

	sessionWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_expiry_warnings_total",
		Help: "Warnings surfaced by the session monitor.",
	})

	sessionForcedLogouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_forced_logouts_total",
		Help: "Forced logouts triggered by the session monitor.",
	})

	tempUsersDisabled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "temp_users_disabled_total",
		Help: "Expired temporary users disabled by the sweeper.",
	})
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		guardDecisions,
		sessionWarnings,
		sessionForcedLogouts,
		tempUsersDisabled,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GuardDecision counts an allow/deny outcome of the route guard.
func GuardDecision(outcome string) {
	guardDecisions.WithLabelValues(outcome).Inc()
}

// SessionWarning counts one expiry warning surfaced to the caller.
func SessionWarning() { sessionWarnings.Inc() }

// SessionForcedLogout counts one forced logout.
func SessionForcedLogout() { sessionForcedLogouts.Inc() }

// TempUsersDisabled counts temporary users disabled by the sweeper.
func TempUsersDisabled(n int64) {
	if n > 0 {
		tempUsersDisabled.Add(float64(n))
	}
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses per-resource identifiers so metric labels stay
// low-cardinality.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "admin" && parts[1] == "users" {
		parts[2] = ":id"
		return "/" + strings.Join(parts, "/")
	}
	return path
}

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
