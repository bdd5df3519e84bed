package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"behaviortrace/internal/dataset"
	"behaviortrace/internal/event"
	"behaviortrace/internal/features"
	"behaviortrace/internal/learning/metrics"
	"behaviortrace/internal/scorer"
	id "behaviortrace/pkg/domain"
)

const (
	// MinTrainingSamples is the floor below which training is skipped.
	MinTrainingSamples = 100
	// RetrainInterval is the age at which an active model is due for
	// retraining regardless of accuracy.
	RetrainInterval = 24 * time.Hour
	// AccuracyRetrainThreshold triggers retraining on the lazy gate.
	AccuracyRetrainThreshold = 0.7
	// AccuracyFeedbackThreshold flags a model after outcome feedback
	// drags its accuracy down.
	AccuracyFeedbackThreshold = 0.6
	// TrainingWindowDays is the event lookback used to build training
	// datasets.
	TrainingWindowDays = 90
	// RecommendationWindowDays is the short lookback used for realtime
	// recommendations.
	RecommendationWindowDays = 7
)

// realtimeModelTypes are the models consulted for a live recommendation
// bundle, in combination order.
var realtimeModelTypes = []scorer.ModelType{
	scorer.ModelBehavioralPrediction,
	scorer.ModelProductRecommendation,
	scorer.ModelWorkflowOptimization,
	scorer.ModelFormOptimization,
	scorer.ModelPersonalization,
}

// TrainResult reports one training invocation.
type TrainResult struct {
	ModelID         string `json:"model_id,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	TrainingSamples int    `json:"training_samples"`
	Skipped         string `json:"skipped,omitempty"`
}

// Service owns the retrain gate and the prediction/feedback loop.
type Service struct {
	models    ModelStore
	events    event.Store
	builder   *dataset.Builder
	extractor *features.Extractor
	registry  *scorer.Registry
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock fixes the service's notion of now. Test helper.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(models ModelStore, events event.Store, builder *dataset.Builder, extractor *features.Extractor, registry *scorer.Registry, opts ...Option) (*Service, error) {
	if models == nil || events == nil || builder == nil || extractor == nil || registry == nil {
		return nil, fmt.Errorf("model store, event store, builder, extractor, and registry are required")
	}
	s := &Service{
		models:    models,
		events:    events,
		builder:   builder,
		extractor: extractor,
		registry:  registry,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ShouldRetrain evaluates the lazy retrain gate for one model type and
// reports the first reason that fires.
func (s *Service) ShouldRetrain(ctx context.Context, modelType scorer.ModelType) (bool, string, error) {
	model, err := s.models.ActiveModel(ctx, modelType)
	if errors.Is(err, ErrModelNotFound) {
		return true, "no active model", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("load active model: %w", err)
	}

	if model.NeedsRetraining {
		return true, "flagged by outcome feedback", nil
	}
	if s.now().Sub(model.TrainedAt) >= RetrainInterval {
		return true, "training interval elapsed", nil
	}
	if model.Accuracy < AccuracyRetrainThreshold {
		return true, "accuracy below threshold", nil
	}

	newEvents, err := s.events.CountSince(ctx, model.TrainedAt)
	if err != nil {
		return false, "", fmt.Errorf("count new events: %w", err)
	}
	threshold := max(MinTrainingSamples, model.TrainingSamples/10)
	if newEvents >= threshold {
		return true, "significant new data", nil
	}
	return false, "", nil
}

// TrainAll trains every model type that is due. One type's failure does
// not stop the rest.
func (s *Service) TrainAll(ctx context.Context, force bool) map[scorer.ModelType]TrainResult {
	results := map[scorer.ModelType]TrainResult{}
	for _, modelType := range scorer.ModelTypes() {
		result, err := s.Train(ctx, modelType, force)
		if err != nil {
			s.logger.Error("model training failed",
				"model_type", modelType, "error", err)
			metrics.TrainingRuns.WithLabelValues(string(modelType), "error").Inc()
			continue
		}
		results[modelType] = result
	}
	return results
}

// Train runs one training pass for a model type. Unless forced, it first
// consults the retrain gate; builds over the trailing 90 days and skips
// when fewer than 100 samples are available.
func (s *Service) Train(ctx context.Context, modelType scorer.ModelType, force bool) (TrainResult, error) {
	if !force {
		due, reason, err := s.ShouldRetrain(ctx, modelType)
		if err != nil {
			return TrainResult{}, err
		}
		if !due {
			metrics.TrainingRuns.WithLabelValues(string(modelType), "skipped").Inc()
			return TrainResult{Skipped: "model does not need retraining"}, nil
		}
		s.logger.Info("retraining model", "model_type", modelType, "reason", reason)
	}

	ds, err := s.builder.Build(ctx, dataset.Options{Days: TrainingWindowDays})
	if err != nil {
		return TrainResult{}, fmt.Errorf("build training dataset: %w", err)
	}
	if len(ds.Samples) < MinTrainingSamples {
		metrics.TrainingRuns.WithLabelValues(string(modelType), "skipped").Inc()
		return TrainResult{
			TrainingSamples: len(ds.Samples),
			Skipped:         "insufficient training data",
		}, nil
	}

	now := s.now()
	session := TrainingSession{
		ID:              "ts_" + uuid.NewString(),
		ModelType:       modelType,
		TrainingSamples: len(ds.Samples),
		FeatureCount:    len(ds.Metadata.FeatureKeys),
		DataQuality:     ds.Metadata.QualityScore,
		Status:          "completed",
		StartedAt:       now,
		CompletedAt:     now,
	}
	if err := s.models.SaveSession(ctx, session); err != nil {
		return TrainResult{}, fmt.Errorf("record training session: %w", err)
	}

	version := 1
	if previous, err := s.models.ActiveModel(ctx, modelType); err == nil {
		version = previous.Version + 1
	}
	model := Model{
		ID:              "mdl_" + uuid.NewString(),
		Type:            modelType,
		Version:         version,
		Status:          ModelStatusActive,
		Accuracy:        1.0,
		TrainingSamples: len(ds.Samples),
		FeatureCount:    len(ds.Metadata.FeatureKeys),
		DataQuality:     ds.Metadata.QualityScore,
		TrainedAt:       now,
	}
	if err := s.models.SaveModel(ctx, model); err != nil {
		return TrainResult{}, fmt.Errorf("activate model: %w", err)
	}

	metrics.TrainingRuns.WithLabelValues(string(modelType), "trained").Inc()
	metrics.ModelAccuracy.WithLabelValues(string(modelType)).Set(model.Accuracy)
	s.logger.Info("model training completed",
		"model_type", modelType,
		"model_id", model.ID,
		"version", version,
		"training_samples", model.TrainingSamples,
		"data_quality", model.DataQuality,
	)
	return TrainResult{
		ModelID:         model.ID,
		SessionID:       session.ID,
		TrainingSamples: model.TrainingSamples,
	}, nil
}

// Predict scores a feature vector with the active model's strategy and
// logs the prediction for outcome feedback. The returned ID keys a later
// RecordOutcome call; it is empty when logging fails, but a prediction is
// always returned.
func (s *Service) Predict(ctx context.Context, modelType scorer.ModelType, v features.Vector) (scorer.Prediction, string) {
	prediction := s.registry.Score(modelType, v)
	metrics.Predictions.WithLabelValues(string(modelType)).Inc()
	if prediction.IsFallback {
		metrics.Fallbacks.WithLabelValues(string(modelType)).Inc()
	}

	record := PredictionRecord{
		ID:         "prd_" + uuid.NewString(),
		ModelType:  modelType,
		Prediction: prediction,
		CreatedAt:  s.now(),
	}
	if model, err := s.models.ActiveModel(ctx, modelType); err == nil {
		record.ModelID = model.ID
	}
	if err := s.models.RecordPrediction(ctx, record); err != nil {
		// Prediction logging is best-effort; the caller still gets a
		// usable prediction.
		s.logger.Error("failed to log prediction",
			"model_type", modelType, "error", err)
		return prediction, ""
	}
	return prediction, record.ID
}

// RecordOutcome attaches ground truth to a logged prediction and
// recomputes the owning model's accuracy. A model dragged below 0.6 is
// flagged for retraining on the next gate evaluation.
func (s *Service) RecordOutcome(ctx context.Context, predictionID string, accurate bool) error {
	if err := s.models.SetOutcome(ctx, predictionID, accurate); err != nil {
		return fmt.Errorf("set prediction outcome: %w", err)
	}

	record, err := s.models.Prediction(ctx, predictionID)
	if err != nil {
		return fmt.Errorf("load prediction: %w", err)
	}
	if record.ModelID == "" {
		// Prediction was served without an active model; nothing to
		// update.
		return nil
	}

	accurateCount, total, err := s.models.OutcomeStats(ctx, record.ModelID)
	if err != nil {
		return fmt.Errorf("compute outcome stats: %w", err)
	}
	if total == 0 {
		return nil
	}

	model, err := s.models.ActiveModel(ctx, record.ModelType)
	if err != nil || model.ID != record.ModelID {
		// Outcome arrived for a retired model version.
		return nil
	}

	model.Accuracy = float64(accurateCount) / float64(total)
	if model.Accuracy < AccuracyFeedbackThreshold {
		model.NeedsRetraining = true
		s.logger.Warn("model accuracy degraded, flagged for retraining",
			"model_type", model.Type,
			"model_id", model.ID,
			"accuracy", model.Accuracy,
		)
	}
	if err := s.models.UpdateModel(ctx, model); err != nil {
		return fmt.Errorf("update model accuracy: %w", err)
	}
	metrics.ModelAccuracy.WithLabelValues(string(model.Type)).Set(model.Accuracy)
	return nil
}

// RealtimeRecommendations extracts the user's trailing 7-day features and
// combines predictions from the realtime model set into one actionable
// bundle.
func (s *Service) RealtimeRecommendations(ctx context.Context, userID id.UserID) (map[string]any, error) {
	v, err := s.extractor.UserFeatures(ctx, userID, RecommendationWindowDays)
	if err != nil {
		return nil, fmt.Errorf("extract recommendation features: %w", err)
	}

	predictions := make([]scorer.Prediction, 0, len(realtimeModelTypes))
	for _, modelType := range realtimeModelTypes {
		prediction, _ := s.Predict(ctx, modelType, v)
		predictions = append(predictions, prediction)
	}
	return scorer.Combine(predictions), nil
}
