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

	// Domain counters.
	signatureRequestsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signature_requests_created_total",
		Help: "Signature requests created, including bulk-send fan-out.",
	})

	ndaCertificatesRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nda_certificates_rendered_total",
		Help: "NDA acceptance certificates rendered as PDF.",
	})
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
		signatureRequestsCreated, ndaCertificatesRendered)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SignatureRequestCreated increments the fan-out counter by n.
func SignatureRequestCreated(n int) {
	if n > 0 {
		signatureRequestsCreated.Add(float64(n))
	}
}

// NDACertificateRendered records one certificate render.
func NDACertificateRendered() {
	ndaCertificatesRendered.Inc()
}

// Instrument measures RPS, latency and in-flight count for the wrapped handler.
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

// CanonicalPath collapses resource identifiers so metric labels stay bounded.
// Capability tokens and document ids are unguessable and must never become
// label values.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	switch parts[1] {
	case "documents", "spaces", "bulk-send":
		parts[2] = ":id"
	case "sign", "envelopes", "invitations":
		parts[2] = ":token"
	case "nda":
		if parts[2] == "certificates" && len(parts) > 3 {
			parts[3] = ":id"
		}
	}
	if len(parts) > 4 && parts[1] == "spaces" && parts[3] == "members" {
		parts[4] = ":email"
	}
	if len(parts) > 4 && parts[1] == "spaces" && parts[3] == "folders" {
		parts[4] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
