// Package metrics declares the Prometheus collectors this module
// exposes and the chi middleware that records HTTP request metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lakeql/nlsearch/internal/domain"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlsearch_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nlsearch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nlsearch_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nlsearch_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	PipelineErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlsearch_pipeline_errors_total",
			Help: "Total number of terminal pipeline errors by kind.",
		},
		[]string{"kind"},
	)

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nlsearch_cache_hits_total",
			Help: "Total number of result cache hits.",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nlsearch_cache_misses_total",
			Help: "Total number of result cache misses.",
		},
	)

	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nlsearch_websocket_connections_active",
			Help: "Number of currently open streaming WebSocket connections.",
		},
	)
)

// Middleware records per-request HTTP metrics using chi's route pattern
// as the path label, so templated routes don't fragment cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// ObserveStage records a single pipeline stage's duration.
func ObserveStage(stage domain.Stage, d time.Duration) {
	PipelineStageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ObserveError increments the per-kind terminal error counter.
func ObserveError(kind domain.ErrorKind) {
	PipelineErrorsTotal.WithLabelValues(string(kind)).Inc()
}
