package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
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

	sessionLogins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)

	sessionRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refreshes_total",
			Help: "Refresh token rotations by result.",
		},
		[]string{"result"},
	)
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		sessionLogins,
		sessionRefreshes,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin records a login outcome ("ok", "rejected", "error").
func ObserveLogin(result string) {
	sessionLogins.WithLabelValues(result).Inc()
}

// ObserveRefresh records a refresh outcome ("ok", "rejected", "conflict", "error").
func ObserveRefresh(result string) {
	sessionRefreshes.WithLabelValues(result).Inc()
}

// CanonicalPath collapses per-resource path segments so metric labels stay
// low-cardinality. Video and like routes embed an id in the path.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 3 && parts[0] == "v1" && parts[1] == "videos" {
		return "/v1/videos/:id"
	}
	if len(parts) == 4 && parts[0] == "v1" && parts[1] == "likes" && parts[2] == "toggle" {
		return "/v1/likes/toggle/:id"
	}
	return "/" + strings.Join(parts, "/")
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

// statusWriter captures the response code for labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
