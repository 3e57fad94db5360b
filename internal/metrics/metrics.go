// Package metrics exposes the Prometheus collectors every service binary
// registers: HTTP request counters/duration histograms plus a handler for
// the /metrics endpoint, mounted on every binary's mux, and a background-loop
// run counter, which only cmd/audit-service's anchor loop records.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the collectors a single binary registers at startup.
type Registry struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	backgroundRuns  *prometheus.CounterVec
}

// New creates and registers the standard HTTP + background-loop collectors
// under service-qualified metric names, so two binaries scraped by the same
// Prometheus instance never collide.
func New(service string) *Registry {
	return &Registry{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sardis",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed, labeled by method, path, and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sardis",
			Subsystem: service,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		backgroundRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sardis",
			Subsystem: service,
			Name:      "background_loop_runs_total",
			Help:      "Total background loop iterations, labeled by loop name and outcome.",
		}, []string{"loop", "outcome"}),
	}
}

// Middleware records one observation per request. Intended to sit inside
// httpmw.Chain alongside httpmw.Logging.
func (reg *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		reg.requests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).Inc()
		reg.requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// ObserveBackgroundRun records one iteration of a named background loop
// (e.g. the audit anchor scheduler, a reconciliation sweep).
func (reg *Registry) ObserveBackgroundRun(loop, outcome string) {
	reg.backgroundRuns.WithLabelValues(loop, outcome).Inc()
}

// Handler returns the /metrics scrape endpoint.
func (reg *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(status int) {
	if sw.wroteHeader {
		return
	}
	sw.wroteHeader = true
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}
