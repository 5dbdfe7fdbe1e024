// Package metrics provides the Prometheus collectors and HTTP handlers for
// the dispatcher's runtime metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes.
const (
	OutcomeInvalid   = "invalid_request"
	OutcomeNoTargets = "no_recipients"
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "delivery_failed"
	OutcomeInternal  = "internal_error"
)

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"path", "method", "status"})

	dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_dispatches_total",
		Help: "Dispatch attempts by provider and outcome.",
	}, []string{"provider", "outcome"})

	recipients = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_recipients_resolved",
		Help:    "Number of distinct device tokens resolved per dispatch.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
)

// ObserveDispatch records the terminal outcome of one dispatch.
func ObserveDispatch(provider, outcome string) {
	dispatches.WithLabelValues(provider, outcome).Inc()
}

// ObserveRecipients records the size of a resolved recipient set.
func ObserveRecipients(n int) {
	recipients.Observe(float64(n))
}

// DispatchCounter returns the counter for a provider/outcome pair.
func DispatchCounter(provider, outcome string) prometheus.Counter {
	return dispatches.WithLabelValues(provider, outcome)
}

// Middleware records RED metrics for every request it wraps.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Prefer the route pattern (e.g. /*) over the raw path to bound cardinality.
		path := r.URL.Path
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil && routeCtx.RoutePattern() != "" {
			path = routeCtx.RoutePattern()
		}

		status := strconv.Itoa(ww.Status())
		httpDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(path, r.Method, status).Inc()
	})
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
