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
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trustplay_api_build_info",
			Help: "Build information of the TrustPlay API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustplay_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustplay_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trustplay_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	TransactionsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustplay_api_transactions_submitted_total",
			Help: "Total number of submitted transactions by HTTP status",
		},
		[]string{"status"},
	)

	LedgerReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustplay_api_ledger_read_duration_seconds",
			Help:    "Duration of ledger reads in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	AirdropLamportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trustplay_api_airdrop_lamports_total",
			Help: "Total lamports handed out by the airdrop endpoint",
		},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustplay_api_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"method"},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordLedgerRead records the duration of a ledger read.
func RecordLedgerRead(operation string, duration time.Duration) {
	LedgerReadDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTransaction records a submitted transaction by its response status.
func RecordTransaction(status int) {
	TransactionsSubmittedTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}
