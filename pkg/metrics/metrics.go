package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all engine metrics
type Metrics struct {
	// Delivery metrics
	SendsTotal      *prometheus.CounterVec
	SendLatency     prometheus.Histogram
	Redistributions prometheus.Counter
	RetriesTotal    prometheus.Counter

	// Queue metrics
	QueueDepth        *prometheus.GaugeVec
	QueueWaitDuration prometheus.Histogram

	// Profile pool metrics
	ProfilesByStatus *prometheus.GaugeVec
	BlocksDetected   *prometheus.CounterVec
	ProfilesResumed  prometheus.Counter
	CooldownSeconds  prometheus.Histogram

	// Policy metrics
	LimitAdjustments *prometheus.CounterVec
	AlertsRaised     *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// NewMetrics creates and registers all engine metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		SendsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sends_total",
			Help:      "Total number of delivery attempts by outcome and mode",
		}, []string{"status", "mode"}),
		SendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_duration_seconds",
			Help:      "Time spent delivering a single message",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		Redistributions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "redistributions_total",
			Help:      "Queue items moved to another profile after exhausting retries",
		}),
		RetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retry_attempts_total",
			Help:      "Total number of delivery retry attempts",
		}),

		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Current number of queue items by status",
		}, []string{"status"}),
		QueueWaitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_wait_duration_seconds",
			Help:      "Time items spend waiting before processing starts",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		}),

		ProfilesByStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "profiles",
			Help:      "Current number of profiles by status",
		}, []string{"status"}),
		BlocksDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "blocks_detected_total",
			Help:      "Block detections by triggering indicator",
		}, []string{"indicator"}),
		ProfilesResumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "profiles_resumed_total",
			Help:      "Profiles automatically returned to rotation",
		}),
		CooldownSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cooldown_seconds",
			Help:      "Cooldown durations applied after sends",
			Buckets:   []float64{60, 120, 240, 480, 900, 1800, 2400},
		}),

		LimitAdjustments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "limit_adjustments_total",
			Help:      "Automatic rate-limit adjustments by direction",
		}, []string{"direction"}),
		AlertsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alerts_raised_total",
			Help:      "Alerts raised by type",
		}, []string{"type"}),

		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}
