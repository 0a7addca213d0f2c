package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine. Every consumer is
// nil-tolerant so unit tests can pass a nil *Metrics.
type Metrics struct {
	// Event dispatch
	EventsProcessed *prometheus.CounterVec // by event kind
	EventsRejected  *prometheus.CounterVec // by reject reason
	EventsIgnored   prometheus.Counter     // unknown kinds, malformed payloads
	EventDuration   *prometheus.HistogramVec
	EngineOffset    prometheus.Gauge

	// Positions
	OrdersExecuted prometheus.Counter
	OrdersClosed   *prometheus.CounterVec // by close reason
	OpenPositions  prometheus.Gauge

	// Snapshotting
	SnapshotSaved    prometheus.Counter
	SnapshotErrors   prometheus.Counter
	SnapshotDuration prometheus.Histogram
	SnapshotOffset   prometheus.Gauge

	// Outbound publishing
	OutputsPublished *prometheus.CounterVec // by output kind
	PublishErrors    prometheus.Counter

	// Input log
	ReadErrors prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_engine_events_processed_total",
			Help: "Input events dispatched by the engine loop",
		}, []string{"kind"}),

		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_engine_events_rejected_total",
			Help: "Trade events rejected with a structured reason",
		}, []string{"reason"}),

		EventsIgnored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "margin_engine_events_ignored_total",
			Help: "Input records skipped (unknown kind or malformed payload)",
		}),

		EventDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "margin_engine_event_duration_seconds",
			Help:    "Time to dispatch a single input event",
			Buckets: latencyBuckets,
		}, []string{"kind"}),

		EngineOffset: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "margin_engine_offset",
			Help: "Stream sequence of the last processed input event",
		}),

		OrdersExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "margin_engine_orders_executed_total",
			Help: "Positions opened",
		}),

		OrdersClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_engine_orders_closed_total",
			Help: "Positions closed, by reason",
		}, []string{"reason"}),

		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "margin_engine_open_positions",
			Help: "Currently open positions",
		}),

		SnapshotSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "margin_engine_snapshot_saved_total",
			Help: "Successful snapshot writes",
		}),

		SnapshotErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "margin_engine_snapshot_errors_total",
			Help: "Failed snapshot writes (retried next interval)",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "margin_engine_snapshot_duration_seconds",
			Help:    "Time to serialize and upsert a snapshot",
			Buckets: prometheus.DefBuckets,
		}),

		SnapshotOffset: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "margin_engine_snapshot_offset",
			Help: "Input log offset recorded in the last durable snapshot",
		}),

		OutputsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "margin_engine_outputs_published_total",
			Help: "Outcome events published to the output log",
		}, []string{"kind"}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "margin_engine_publish_errors_total",
			Help: "Output publish attempts that failed and were retried",
		}),

		ReadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "margin_engine_read_errors_total",
			Help: "Input log read failures (backed off and retried)",
		}),
	}
}
