// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Ingestion metrics
	TicksProcessed *prometheus.CounterVec
	TicksDropped   *prometheus.CounterVec
	WorkerQueueLen *prometheus.GaugeVec

	// Signal metrics
	SignalsEmitted   *prometheus.CounterVec
	SignalStrength   prometheus.Histogram
	DuplicateSignals prometheus.Counter

	// Verification metrics
	PredictionsRegistered prometheus.Counter
	PredictionsResolved   *prometheus.CounterVec
	PendingPredictions    prometheus.Gauge
	OverallAccuracy       prometheus.Gauge

	// Tuning metrics
	LearningCycles      *prometheus.CounterVec
	ConfidenceThreshold prometheus.Gauge

	// Registry metrics
	VersionsCreated  prometheus.Counter
	VersionsPromoted prometheus.Counter
	Rollbacks        prometheus.Counter

	// Archive metrics
	ArchiveErrors prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "signal_pipeline"
	}

	return &Metrics{
		TicksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_processed_total",
			Help:      "Total number of ticks processed per exchange",
		}, []string{"exchange"}),
		TicksDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_dropped_total",
			Help:      "Total number of ticks dropped by reason",
		}, []string{"reason"}),
		WorkerQueueLen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "worker_queue_length",
			Help:      "Current inbound queue length per market key",
		}, []string{"key"}),

		SignalsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "signals_emitted_total",
			Help:      "Total number of signals emitted by type",
		}, []string{"type"}),
		SignalStrength: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "signal_strength",
			Help:      "Distribution of emitted signal strengths",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		DuplicateSignals: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "duplicate_signals_total",
			Help:      "Total number of duplicate signal registrations rejected",
		}),

		PredictionsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "predictions_registered_total",
			Help:      "Total number of predictions registered",
		}),
		PredictionsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "predictions_resolved_total",
			Help:      "Total number of predictions by terminal state",
		}, []string{"status"}),
		PendingPredictions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "pending_predictions",
			Help:      "Current number of open predictions",
		}),
		OverallAccuracy: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "overall_accuracy_percent",
			Help:      "Current overall prediction accuracy",
		}),

		LearningCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tuning",
			Name:      "learning_cycles_total",
			Help:      "Total number of learning cycle invocations by outcome",
		}, []string{"outcome"}),
		ConfidenceThreshold: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tuning",
			Name:      "confidence_threshold",
			Help:      "Current working confidence threshold",
		}),

		VersionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "versions_created_total",
			Help:      "Total number of model version snapshots",
		}),
		VersionsPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "versions_promoted_total",
			Help:      "Total number of promotions to production",
		}),
		Rollbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "rollbacks_total",
			Help:      "Total number of rollbacks",
		}),

		ArchiveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Total number of archive write failures",
		}),
	}
}
