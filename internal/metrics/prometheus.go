package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketpulse_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	// Scoring metrics
	MentionsScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_mentions_scored_total",
			Help: "Total number of mentions scored by the ensemble",
		},
		[]string{"symbol", "source_type"},
	)

	MentionsDeduplicated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_mentions_deduplicated_total",
			Help: "Total number of mentions skipped by the dedup check",
		},
		[]string{"symbol"},
	)

	// Alert metrics
	AlertsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_alerts_dispatched_total",
			Help: "Total number of alert dispatch attempts",
		},
		[]string{"channel", "status"}, // status: sent|failed
	)

	// Prediction metrics
	PredictionsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketpulse_predictions_recorded_total",
			Help: "Total number of predictions recorded for audit",
		},
	)

	PredictionsEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_predictions_evaluated_total",
			Help: "Total number of prediction audits reconciled",
		},
		[]string{"status"}, // status: matched|missed
	)

	// Provider metrics
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketpulse_provider_requests_total",
			Help: "Outbound market data provider requests",
		},
		[]string{"provider", "status"}, // status: success|error
	)
)

// Register registers all metrics with the given registry
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		WorkerExecutions,
		WorkerDuration,
		MentionsScored,
		MentionsDeduplicated,
		AlertsDispatched,
		PredictionsRecorded,
		PredictionsEvaluated,
		ProviderRequests,
	)
}
