// Package metrics exposes Prometheus collectors for the learning
// subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TrainingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "behaviortrace",
		Subsystem: "learning",
		Name:      "training_runs_total",
		Help:      "Training invocations by model type and result.",
	}, []string{"model_type", "result"})

	Predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "behaviortrace",
		Subsystem: "learning",
		Name:      "predictions_total",
		Help:      "Predictions served by model type.",
	}, []string{"model_type"})

	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "behaviortrace",
		Subsystem: "learning",
		Name:      "prediction_fallbacks_total",
		Help:      "Predictions that degraded to the safe fallback.",
	}, []string{"model_type"})

	ModelAccuracy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "behaviortrace",
		Subsystem: "learning",
		Name:      "model_accuracy",
		Help:      "Current accuracy of the active model by type.",
	}, []string{"model_type"})
)
