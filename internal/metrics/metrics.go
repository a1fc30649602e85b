// Package metrics provides Prometheus metrics for the drift-adaptive
// ensemble engine: training throughput, member lifecycle transitions, and
// concept-memory activity, exposed via the metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"driftstream/internal/member"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Stream metrics
	ExamplesTotal prometheus.Counter   // Total examples trained
	TrainLatency  prometheus.Histogram // Per-example training latency

	// Member lifecycle metrics
	WarningsTotal        prometheus.Counter // Warnings opened
	DriftsBackground     prometheus.Counter // Drifts resolved to the background learner
	DriftsRecurring      prometheus.Counter // Drifts resolved to an archived concept
	DriftsColdReset      prometheus.Counter // Drifts resolved with a cold reset
	FalseAlarmTimeout    prometheus.Counter // Warnings retracted by timeout
	FalseAlarmComparison prometheus.Counter // Drift signals retracted by comparison

	// Concept memory metrics
	ConceptsArchived prometheus.Counter // Snapshots committed to history
	HistorySize      prometheus.Gauge   // Concepts currently archived

	// Ensemble quality
	EnsembleAccuracy prometheus.Gauge // Trailing prequential accuracy of the vote
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		ExamplesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "examples_trained_total",
			Help: "Total number of examples trained across the ensemble",
		}),
		TrainLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "train_latency_seconds",
			Help:    "Per-example ensemble training latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		WarningsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "warnings_opened_total",
			Help: "Total number of warning periods opened",
		}),
		DriftsBackground: factory.NewCounter(prometheus.CounterOpts{
			Name: "drifts_background_total",
			Help: "Total drifts resolved by promoting the background learner",
		}),
		DriftsRecurring: factory.NewCounter(prometheus.CounterOpts{
			Name: "drifts_recurring_total",
			Help: "Total drifts resolved by reactivating an archived concept",
		}),
		DriftsColdReset: factory.NewCounter(prometheus.CounterOpts{
			Name: "drifts_cold_reset_total",
			Help: "Total drifts resolved by resetting the active model cold",
		}),
		FalseAlarmTimeout: factory.NewCounter(prometheus.CounterOpts{
			Name: "false_alarms_timeout_total",
			Help: "Total warnings retracted after the example-count timeout",
		}),
		FalseAlarmComparison: factory.NewCounter(prometheus.CounterOpts{
			Name: "false_alarms_comparison_total",
			Help: "Total drift signals retracted by model comparison",
		}),
		ConceptsArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "concepts_archived_total",
			Help: "Total model snapshots committed to concept history",
		}),
		HistorySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "concept_history_size",
			Help: "Number of concepts currently archived",
		}),
		EnsembleAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ensemble_accuracy",
			Help: "Trailing prequential accuracy of the ensemble vote",
		}),
	}
}

// ObserveEvent updates lifecycle counters from a member event.
func (m *Metrics) ObserveEvent(ev member.Event) {
	switch ev.Type {
	case member.EventWarningOpened:
		m.WarningsTotal.Inc()
	case member.EventDriftBackground:
		m.DriftsBackground.Inc()
		m.ConceptsArchived.Inc()
	case member.EventDriftRecurring:
		m.DriftsRecurring.Inc()
		m.ConceptsArchived.Inc()
	case member.EventDriftColdReset:
		m.DriftsColdReset.Inc()
		if ev.HistoryID != 0 {
			m.ConceptsArchived.Inc()
		}
	case member.EventFalseAlarmTimeout:
		m.FalseAlarmTimeout.Inc()
	case member.EventFalseAlarmComparison:
		m.FalseAlarmComparison.Inc()
	}
}
