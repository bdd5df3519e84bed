// Package learning orchestrates the model lifecycle around the scoring
// layer: when to retrain, bookkeeping for training runs, prediction
// logging, and outcome feedback.
package learning

import (
	"time"

	"behaviortrace/internal/scorer"
)

type ModelStatus string

const (
	ModelStatusActive  ModelStatus = "active"
	ModelStatusRetired ModelStatus = "retired"
)

// Model is one trained (or heuristically initialized) model version.
// Accuracy reflects recorded prediction outcomes; a fresh model starts
// optimistic until feedback accumulates.
type Model struct {
	ID              string           `json:"id"`
	Type            scorer.ModelType `json:"model_type"`
	Version         int              `json:"version"`
	Status          ModelStatus      `json:"status"`
	Accuracy        float64          `json:"accuracy"`
	TrainingSamples int              `json:"training_samples"`
	FeatureCount    int              `json:"feature_count"`
	DataQuality     float64          `json:"data_quality_score"`
	TrainedAt       time.Time        `json:"trained_at"`
	NeedsRetraining bool             `json:"needs_retraining"`
}

// PredictionRecord is one logged prediction awaiting outcome feedback.
type PredictionRecord struct {
	ID         string            `json:"id"`
	ModelID    string            `json:"model_id"`
	ModelType  scorer.ModelType  `json:"model_type"`
	Prediction scorer.Prediction `json:"prediction"`
	Outcome    *bool             `json:"outcome,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// TrainingSession records one training invocation, successful or not.
type TrainingSession struct {
	ID              string           `json:"id"`
	ModelType       scorer.ModelType `json:"model_type"`
	TrainingSamples int              `json:"training_samples"`
	FeatureCount    int              `json:"feature_count"`
	DataQuality     float64          `json:"data_quality_score"`
	Status          string           `json:"status"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     time.Time        `json:"completed_at"`
}
