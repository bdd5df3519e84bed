package learning

import (
	"context"
	"fmt"
	"sync"

	"behaviortrace/internal/scorer"
)

// InMemoryModelStore keeps the model registry and prediction log in
// process memory. Suitable for tests and single-node deployments.
type InMemoryModelStore struct {
	mu          sync.RWMutex
	models      map[string]Model
	sessions    []TrainingSession
	predictions map[string]PredictionRecord
}

var _ ModelStore = (*InMemoryModelStore)(nil)

func NewInMemoryModelStore() *InMemoryModelStore {
	return &InMemoryModelStore{
		models:      map[string]Model{},
		predictions: map[string]PredictionRecord{},
	}
}

func (s *InMemoryModelStore) ActiveModel(_ context.Context, modelType scorer.ModelType) (Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.models {
		if m.Type == modelType && m.Status == ModelStatusActive {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("active model for %s: %w", modelType, ErrModelNotFound)
}

func (s *InMemoryModelStore) SaveModel(_ context.Context, model Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if model.Status == ModelStatusActive {
		for id, existing := range s.models {
			if existing.Type == model.Type && existing.Status == ModelStatusActive {
				existing.Status = ModelStatusRetired
				s.models[id] = existing
			}
		}
	}
	s.models[model.ID] = model
	return nil
}

func (s *InMemoryModelStore) UpdateModel(_ context.Context, model Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[model.ID]; !ok {
		return fmt.Errorf("update model %s: %w", model.ID, ErrModelNotFound)
	}
	s.models[model.ID] = model
	return nil
}

func (s *InMemoryModelStore) SaveSession(_ context.Context, session TrainingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, session)
	return nil
}

// Sessions returns a copy of the recorded training sessions. Test helper.
func (s *InMemoryModelStore) Sessions() []TrainingSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TrainingSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *InMemoryModelStore) RecordPrediction(_ context.Context, record PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[record.ID] = record
	return nil
}

func (s *InMemoryModelStore) Prediction(_ context.Context, predictionID string) (PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.predictions[predictionID]
	if !ok {
		return PredictionRecord{}, fmt.Errorf("prediction %s: %w", predictionID, ErrPredictionNotFound)
	}
	return record, nil
}

func (s *InMemoryModelStore) SetOutcome(_ context.Context, predictionID string, accurate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.predictions[predictionID]
	if !ok {
		return fmt.Errorf("prediction %s: %w", predictionID, ErrPredictionNotFound)
	}
	record.Outcome = &accurate
	s.predictions[predictionID] = record
	return nil
}

func (s *InMemoryModelStore) OutcomeStats(_ context.Context, modelID string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accurate, total := 0, 0
	for _, record := range s.predictions {
		if record.ModelID != modelID || record.Outcome == nil {
			continue
		}
		total++
		if *record.Outcome {
			accurate++
		}
	}
	return accurate, total, nil
}
