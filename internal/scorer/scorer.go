// Package scorer maps behavioral feature vectors to structured
// predictions. Scoring is a pluggable heuristic layer: each model type
// has an interchangeable strategy behind a small interface, so a trained
// backend can replace any one scorer without touching callers.
package scorer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"behaviortrace/internal/features"
)

// ModelType names one scoring concern.
type ModelType string

const (
	ModelBehavioralPrediction  ModelType = "behavioral_prediction"
	ModelProductRecommendation ModelType = "product_recommendation"
	ModelWorkflowOptimization  ModelType = "workflow_optimization"
	ModelFormOptimization      ModelType = "form_optimization"
	ModelPersonalization       ModelType = "personalization"
	ModelClinicalDecision      ModelType = "clinical_decision"
)

// ModelTypes lists every registered-by-default model type in a stable
// order.
func ModelTypes() []ModelType {
	return []ModelType{
		ModelBehavioralPrediction,
		ModelProductRecommendation,
		ModelWorkflowOptimization,
		ModelFormOptimization,
		ModelPersonalization,
		ModelClinicalDecision,
	}
}

// Prediction is one strategy's structured output. Confidence is always a
// valid float in [0,1]; consumers can sort and threshold without nil or
// NaN checks.
type Prediction struct {
	ModelType  ModelType      `json:"model_type"`
	Payload    map[string]any `json:"payload"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	IsFallback bool           `json:"is_fallback"`
}

// ErrInsufficientSignal is returned by strategies when the vector carries
// too little history to score. The registry converts it to the fallback
// prediction.
var ErrInsufficientSignal = errors.New("insufficient behavioral signal")

// Strategy scores one model type. Implementations must be deterministic
// over the input vector and safe for concurrent use.
type Strategy interface {
	ModelType() ModelType
	Predict(v features.Vector) (Prediction, error)
}

// Fallback is the fixed safe prediction used when a model type is
// unknown, a strategy fails, or a strategy produces an out-of-range
// confidence. IsFallback tells callers not to act on it automatically.
func Fallback(modelType ModelType) Prediction {
	return Prediction{
		ModelType:  modelType,
		Payload:    map[string]any{"prediction": "continue_current_workflow"},
		Confidence: 0.5,
		Reasoning:  "Fallback prediction due to model unavailability",
		IsFallback: true,
	}
}

// Registry dispatches model types to strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies map[ModelType]Strategy
	logger     *slog.Logger
}

type RegistryOption func(*Registry)

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry returns a registry preloaded with the six default heuristic
// strategies.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		strategies: map[ModelType]Strategy{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, s := range defaultStrategies() {
		r.Register(s)
	}
	return r
}

// Register installs or replaces the strategy for its model type.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.ModelType()] = s
}

// Score produces a prediction for the model type. It never returns an
// error: unknown types, strategy failures, and invalid confidences all
// degrade to the fallback prediction, loudly logged.
func (r *Registry) Score(modelType ModelType, v features.Vector) Prediction {
	r.mu.RLock()
	strategy, ok := r.strategies[modelType]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("no strategy registered for model type", "model_type", modelType)
		return Fallback(modelType)
	}

	p, err := strategy.Predict(v)
	if err != nil {
		if !errors.Is(err, ErrInsufficientSignal) {
			r.logger.Error("strategy failed, using fallback",
				"model_type", modelType, "error", err)
		}
		return Fallback(modelType)
	}
	if p.Confidence < 0 || p.Confidence > 1 || math.IsNaN(p.Confidence) {
		r.logger.Error("strategy produced out-of-range confidence, using fallback",
			"model_type", modelType, "confidence", p.Confidence)
		return Fallback(modelType)
	}
	p.ModelType = modelType
	return p
}

// bundleKeys maps each model type's top payload field to the name it
// takes in a combined recommendation bundle.
var bundleKeys = map[ModelType][2]string{
	ModelBehavioralPrediction:  {"next_action", "next_action"},
	ModelProductRecommendation: {"recommended_products", "recommended_products"},
	ModelWorkflowOptimization:  {"suggestions", "workflow_suggestions"},
	ModelFormOptimization:      {"optimizations", "form_optimizations"},
	ModelPersonalization:       {"ui_changes", "ui_personalizations"},
	ModelClinicalDecision:      {"clinical_suggestions", "clinical_suggestions"},
}

// Combine folds several per-model predictions into one recommendation
// bundle: each model's top payload field under its bundle key, overall
// confidence as the arithmetic mean, and reasoning strings space-joined
// in the order the predictions were given.
func Combine(predictions []Prediction) map[string]any {
	bundle := map[string]any{}
	var confidences float64
	var reasons []string

	for _, p := range predictions {
		if keys, ok := bundleKeys[p.ModelType]; ok {
			if value, present := p.Payload[keys[0]]; present {
				bundle[keys[1]] = value
			}
		}
		confidences += p.Confidence
		if p.Reasoning != "" {
			reasons = append(reasons, p.Reasoning)
		}
	}

	if len(predictions) > 0 {
		bundle["overall_confidence"] = confidences / float64(len(predictions))
	} else {
		bundle["overall_confidence"] = 0.0
	}
	bundle["reasoning"] = strings.Join(reasons, " ")
	return bundle
}

// scaledConfidence interpolates between the 0.5 floor and a strategy's
// full-data base confidence by how much history backs the vector. Fifty
// or more events count as full backing.
func scaledConfidence(base float64, v features.Vector) float64 {
	sufficiency := math.Min(1, v.Float("total_events")/50)
	return 0.5 + (base-0.5)*sufficiency
}

// topOptions flattens a selection-pattern sub-map into option names
// ordered by descending count, ties broken alphabetically.
func topOptions(v features.Vector, patternKey string) []string {
	patterns, ok := v[patternKey].(map[string]any)
	if !ok {
		return nil
	}
	counts, ok := patterns["top_selections"].(map[string]int)
	if !ok || len(counts) == 0 {
		return nil
	}

	options := make([]string, 0, len(counts))
	for option := range counts {
		options = append(options, option)
	}
	sort.Slice(options, func(i, j int) bool {
		if counts[options[i]] != counts[options[j]] {
			return counts[options[i]] > counts[options[j]]
		}
		return options[i] < options[j]
	})
	return options
}

func requireSignal(v features.Vector) error {
	if v.Float("total_events") <= 0 {
		return fmt.Errorf("%w: no events in window", ErrInsufficientSignal)
	}
	return nil
}
