// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	FeedMessages   prometheus.Counter
	FeedReconnects prometheus.Counter
	TradesObserved *prometheus.CounterVec
	DecodeErrors   *prometheus.CounterVec

	// Mirror pipeline metrics
	TradesMirrored *prometheus.CounterVec
	StageErrors    *prometheus.CounterVec
	MirrorLatency  *prometheus.HistogramVec
	QueueDepth     prometheus.Gauge

	// Submission metrics
	BundlesSent         prometheus.Counter
	RelayRejections     prometheus.Counter
	ConfirmationLatency prometheus.Histogram

	// Portfolio metrics
	PositionsHeld *prometheus.GaugeVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastTradeMirrored prometheus.Gauge
	UptimeSeconds     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_copy_trader"
	}

	return &Metrics{
		// Feed metrics
		FeedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of transaction notifications received",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),
		TradesObserved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "trades_observed_total",
			Help:      "Total number of peer trades decoded by venue and side",
		}, []string{"venue", "side"}),
		DecodeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Total number of transactions that failed to decode by venue",
		}, []string{"venue"}),

		// Mirror pipeline metrics
		TradesMirrored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "trades_total",
			Help:      "Total number of mirrored trades by venue and outcome",
		}, []string{"venue", "status"}),
		StageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "stage_errors_total",
			Help:      "Total number of pipeline errors by stage",
		}, []string{"stage"}),
		MirrorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "latency_seconds",
			Help:      "Time from peer observation to terminal state in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		}, []string{"venue"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "queue_depth",
			Help:      "Number of trades waiting in per-asset queues",
		}),

		// Submission metrics
		BundlesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "bundles_sent_total",
			Help:      "Total number of bundle broadcasts",
		}),
		RelayRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "relay_rejections_total",
			Help:      "Total number of submissions no relay endpoint accepted",
		}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submit",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from broadcast to on-chain confirmation in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),

		// Portfolio metrics
		PositionsHeld: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "positions_held",
			Help:      "Number of open positions by ledger side",
		}, []string{"side"}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastTradeMirrored: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_trade_mirrored_timestamp",
			Help:      "Unix timestamp of the last confirmed mirrored trade",
		}),
		UptimeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeObserved increments the observed-trade counter.
func RecordTradeObserved(venue string, isBuy bool) {
	DefaultMetrics.TradesObserved.WithLabelValues(venue, sideLabel(isBuy)).Inc()
}

// RecordDecodeError records a failed decode for a venue.
func RecordDecodeError(venue string) {
	DefaultMetrics.DecodeErrors.WithLabelValues(venue).Inc()
}

// RecordTradeMirrored records the terminal outcome of a mirrored trade.
func RecordTradeMirrored(venue, status string) {
	DefaultMetrics.TradesMirrored.WithLabelValues(venue, status).Inc()
}

// RecordStageError records a pipeline error at a named stage.
func RecordStageError(stage string) {
	DefaultMetrics.StageErrors.WithLabelValues(stage).Inc()
}

// RecordMirrorLatency records end-to-end mirror latency for a venue.
func RecordMirrorLatency(venue string, seconds float64) {
	DefaultMetrics.MirrorLatency.WithLabelValues(venue).Observe(seconds)
}

// UpdateQueueDepth updates the pending-trade gauge.
func UpdateQueueDepth(depth int) {
	DefaultMetrics.QueueDepth.Set(float64(depth))
}

// UpdatePositions updates the open-position gauges for both ledger sides.
func UpdatePositions(peer, own int) {
	DefaultMetrics.PositionsHeld.WithLabelValues("peer").Set(float64(peer))
	DefaultMetrics.PositionsHeld.WithLabelValues("own").Set(float64(own))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

func sideLabel(isBuy bool) string {
	if isBuy {
		return "buy"
	}
	return "sell"
}
