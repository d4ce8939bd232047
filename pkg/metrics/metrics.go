package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_ledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "referral_ledger_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Ledger metrics
	DistributionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_ledger_distributions_total",
			Help: "Total number of commission distributions",
		},
		[]string{"type", "result"}, // result: "committed", "replayed", "error"
	)

	CommissionCreditedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_ledger_commission_credited_minor_units_total",
			Help: "Commission credited to ancestors and override holders, in minor units",
		},
		[]string{"type"}, // "level_income", "additional_income"
	)

	CommissionForfeitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_ledger_commission_forfeited_minor_units_total",
			Help: "Undistributed commission retained by the platform, in minor units",
		},
	)

	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_ledger_transfers_total",
			Help: "Total number of wallet operations",
		},
		[]string{"kind", "status"},
	)

	CommitRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_ledger_commit_retries_total",
			Help: "Commits retried after a version conflict or lock timeout",
		},
	)

	SweepTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_ledger_sweep_transitions_total",
			Help: "Lifecycle transitions applied by the expiry sweep",
		},
		[]string{"transition"}, // "renewed", "grace", "compressed"
	)

	SettingsCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_ledger_settings_cache_total",
			Help: "Settings cache lookups",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordDistribution records the outcome of one commission run.
func RecordDistribution(eventType, result string, credited map[string]int64, forfeited int64) {
	DistributionsTotal.WithLabelValues(eventType, result).Inc()
	for kind, amount := range credited {
		CommissionCreditedTotal.WithLabelValues(kind).Add(float64(amount))
	}
	if forfeited > 0 {
		CommissionForfeitedTotal.Add(float64(forfeited))
	}
}

// RecordTransfer records a wallet operation outcome.
func RecordTransfer(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	TransfersTotal.WithLabelValues(kind, status).Inc()
}
