// Package metrics provides Prometheus instrumentation for the
// marketplace engine.
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
	// TradesTotal counts completed trades, partitioned by mode
	// (fixed, auction, offer).
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curio_trades_total",
		Help: "Total number of completed trades",
	}, []string{"mode"})

	// TradeLatency tracks trade execution latency per mode.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "curio_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// ActiveAuctions tracks the number of live auctions.
	ActiveAuctions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curio_active_auctions",
		Help: "Number of currently live auctions",
	})

	// PendingOffers tracks the number of open offers with escrow held.
	PendingOffers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curio_pending_offers",
		Help: "Number of pending offers holding escrow",
	})

	// LockedFunds tracks the escrow pool the engine holds for live bids
	// and pending offers.
	LockedFunds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curio_locked_funds",
		Help: "Funds held in custody for live bids and pending offers",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curio_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "curio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// TradeRejections counts operations refused before execution,
	// partitioned by reason label.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curio_trade_rejections_total",
		Help: "Operations rejected before execution",
	}, []string{"reason"})

	// ItemVolume tracks cumulative traded quantity per registry.
	ItemVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curio_item_volume_total",
		Help: "Cumulative traded quantity in units",
	}, []string{"registry", "mode"})
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

		// Use the route pattern for path label to avoid high cardinality.
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
