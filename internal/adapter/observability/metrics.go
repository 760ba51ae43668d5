package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// BackendAttemptsTotal counts every call to the chat backend by tier and outcome.
	BackendAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_backend_attempts_total",
			Help: "Backend attempts by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)
	BackendAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_backend_attempt_duration_seconds",
			Help:    "Backend attempt duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"tier"},
	)
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_requests_total",
			Help: "Dispatch outcomes",
		},
		[]string{"outcome"},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_lookups_total",
			Help: "Response cache lookups by result",
		},
		[]string{"backend", "result"},
	)
	CacheInvalidatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_invalidated_entries_total",
			Help: "Entries removed by conversation invalidation",
		},
		[]string{"backend"},
	)

	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_rate_limit_decisions_total",
			Help: "Admission decisions of the global dispatch limiter",
		},
		[]string{"decision"},
	)

	UploadDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upload_admission_decisions_total",
			Help: "Upload admission decisions by reason",
		},
		[]string{"reason"},
	)
)

var initOnce sync.Once

// InitMetrics registers the collectors with the default registry once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			BackendAttemptsTotal,
			BackendAttemptDuration,
			DispatchTotal,
			CacheLookupsTotal,
			CacheInvalidatedTotal,
			RateLimitDecisionsTotal,
			UploadDecisionsTotal,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveBackendAttempt records one tier attempt.
func ObserveBackendAttempt(tier string, ok bool, d time.Duration) {
	outcome := "error"
	if ok {
		outcome = "success"
	}
	BackendAttemptsTotal.WithLabelValues(tier, outcome).Inc()
	BackendAttemptDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// ObserveDispatch records the terminal outcome of one dispatch.
func ObserveDispatch(outcome string) {
	DispatchTotal.WithLabelValues(outcome).Inc()
}

func ObserveCacheLookup(backend, result string) {
	CacheLookupsTotal.WithLabelValues(backend, result).Inc()
}

func ObserveCacheInvalidation(backend string, n int) {
	CacheInvalidatedTotal.WithLabelValues(backend).Add(float64(n))
}

func ObserveRateLimit(decision string) {
	RateLimitDecisionsTotal.WithLabelValues(decision).Inc()
}

func ObserveUploadDecision(reason string) {
	UploadDecisionsTotal.WithLabelValues(reason).Inc()
}
