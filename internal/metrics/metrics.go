// Package metrics provides Prometheus instrumentation for the decision engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seed_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side"})

	// TradeLatency is the end-to-end trade execution latency.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seed_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// TradeVolume tracks cumulative Seeds staked per side.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seed_trade_volume_total",
		Help: "Cumulative Seeds staked through trades",
	}, []string{"side"})

	// ActiveDecisions tracks the number of decisions open for trading.
	ActiveDecisions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seed_active_decisions",
		Help: "Number of decisions currently open for trading",
	})

	// StakeLimitRejections counts trades rejected by the stake limiter.
	StakeLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seed_stake_limit_rejections_total",
		Help: "Trades rejected by the per-decision or per-category stake limit",
	})

	// Resolutions counts recorded resolutions, partitioned by issue.
	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seed_resolutions_total",
		Help: "Total resolutions recorded",
	}, []string{"issue"})

	// ResolutionsDeferred counts sweep passes that deferred a decision for
	// insufficient indicator data.
	ResolutionsDeferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seed_resolutions_deferred_total",
		Help: "Resolution attempts deferred for insufficient indicator data",
	})

	// Settlements counts settled decision pools.
	Settlements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seed_settlements_total",
		Help: "Total decision pools settled",
	})

	// SettlementPayouts tracks total Seeds paid out at settlement.
	SettlementPayouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seed_settlement_payout_seeds_total",
		Help: "Cumulative Seeds credited by settlement payouts",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seed_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seed_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seed_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
