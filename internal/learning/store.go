package learning

import (
	"context"
	"errors"

	"behaviortrace/internal/scorer"
)

var (
	ErrModelNotFound      = errors.New("model not found")
	ErrPredictionNotFound = errors.New("prediction not found")
)

// ModelStore persists models, training sessions, and the prediction log.
type ModelStore interface {
	// ActiveModel returns the active model for a type, or
	// ErrModelNotFound when none exists.
	ActiveModel(ctx context.Context, modelType scorer.ModelType) (Model, error)
	// SaveModel stores a new model version and retires any previously
	// active model of the same type.
	SaveModel(ctx context.Context, model Model) error
	// UpdateModel overwrites an existing model by ID.
	UpdateModel(ctx context.Context, model Model) error

	SaveSession(ctx context.Context, session TrainingSession) error

	RecordPrediction(ctx context.Context, record PredictionRecord) error
	// Prediction returns a logged prediction, or ErrPredictionNotFound.
	Prediction(ctx context.Context, predictionID string) (PredictionRecord, error)
	SetOutcome(ctx context.Context, predictionID string, accurate bool) error
	// OutcomeStats reports (accurate, total) over predictions for a
	// model that have recorded outcomes.
	OutcomeStats(ctx context.Context, modelID string) (accurate, total int, err error)
}
