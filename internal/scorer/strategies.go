package scorer

import (
	"fmt"

	"behaviortrace/internal/features"
)

func defaultStrategies() []Strategy {
	return []Strategy{
		behavioralStrategy{},
		productStrategy{},
		workflowStrategy{},
		formStrategy{},
		personalizationStrategy{},
		clinicalStrategy{},
	}
}

// behavioralStrategy predicts the user's likely next action from form and
// workflow progress signals.
type behavioralStrategy struct{}

func (behavioralStrategy) ModelType() ModelType { return ModelBehavioralPrediction }

func (behavioralStrategy) Predict(v features.Vector) (Prediction, error) {
	if err := requireSignal(v); err != nil {
		return Prediction{}, err
	}

	nextAction := "continue_workflow"
	alternatives := []string{"review_recent_activity"}
	switch {
	case v.Float("validation_error_rate") > 0.2:
		nextAction = "review_form_errors"
		alternatives = []string{"form_fill", "contact_support"}
	case v.Float("form_completion_rate") > 0 && v.Float("form_completion_rate") < 1:
		nextAction = "form_fill"
		alternatives = []string{"continue_workflow"}
	case v.Float("workflow_completion_rate") < 0.5 && v.Float("avg_workflow_steps") > 0:
		nextAction = "resume_workflow"
		alternatives = []string{"start_quick_request"}
	}

	return Prediction{
		Payload: map[string]any{
			"next_action":  nextAction,
			"alternatives": alternatives,
		},
		Confidence: scaledConfidence(0.8, v),
		Reasoning:  "Based on recent form interaction patterns",
	}, nil
}

// productStrategy recommends products from the user's historical
// selection patterns. No selection history means nothing to recommend.
type productStrategy struct{}

func (productStrategy) ModelType() ModelType { return ModelProductRecommendation }

func (productStrategy) Predict(v features.Vector) (Prediction, error) {
	if err := requireSignal(v); err != nil {
		return Prediction{}, err
	}
	products := topOptions(v, "product_selection_patterns")
	if len(products) == 0 {
		return Prediction{}, fmt.Errorf("%w: no product selection history", ErrInsufficientSignal)
	}

	return Prediction{
		Payload: map[string]any{
			"recommended_products": products,
		},
		Confidence: scaledConfidence(0.75, v),
		Reasoning:  "Based on similar user preferences",
	}, nil
}

// workflowStrategy suggests navigation changes from back-step and
// efficiency signals.
type workflowStrategy struct{}

func (workflowStrategy) ModelType() ModelType { return ModelWorkflowOptimization }

func (workflowStrategy) Predict(v features.Vector) (Prediction, error) {
	if err := requireSignal(v); err != nil {
		return Prediction{}, err
	}

	var suggestions []string
	if v.Float("workflow_back_step_rate") > 0.2 {
		suggestions = append(suggestions, "simplify_navigation")
	}
	if v.Float("navigation_efficiency") < 0.7 {
		suggestions = append(suggestions, "reduce_workflow_steps")
	}
	if rate := v.Float("workflow_completion_rate"); rate > 0 && rate < 0.5 {
		suggestions = append(suggestions, "add_progress_indicators")
	}
	if len(suggestions) == 0 {
		suggestions = []string{"keep_current_flow"}
	}

	return Prediction{
		Payload: map[string]any{
			"suggestions": suggestions,
		},
		Confidence: scaledConfidence(0.7, v),
		Reasoning:  "Common workflow patterns suggest optimization",
	}, nil
}

// formStrategy proposes form-layout changes from fill-time, abandonment,
// and validation signals.
type formStrategy struct{}

func (formStrategy) ModelType() ModelType { return ModelFormOptimization }

func (formStrategy) Predict(v features.Vector) (Prediction, error) {
	if err := requireSignal(v); err != nil {
		return Prediction{}, err
	}

	var optimizations []string
	if v.Float("field_abandon_rate") > 0.3 {
		optimizations = append(optimizations, "reorder_fields")
	}
	if v.Float("validation_error_rate") > 0.2 {
		optimizations = append(optimizations, "inline_validation")
	}
	if v.Float("avg_form_fill_time") > 300 {
		optimizations = append(optimizations, "add_autocomplete")
	}
	if len(optimizations) == 0 {
		optimizations = []string{"keep_current_layout"}
	}

	return Prediction{
		Payload: map[string]any{
			"optimizations": optimizations,
		},
		Confidence: scaledConfidence(0.8, v),
		Reasoning:  "Form completion patterns indicate opportunities",
	}, nil
}

// personalizationStrategy derives UI adjustments from device mix and
// help-seeking behavior.
type personalizationStrategy struct{}

func (personalizationStrategy) ModelType() ModelType { return ModelPersonalization }

func (personalizationStrategy) Predict(v features.Vector) (Prediction, error) {
	if err := requireSignal(v); err != nil {
		return Prediction{}, err
	}

	var uiChanges []string
	if dominantDevice(v) == "mobile" {
		uiChanges = append(uiChanges, "compact_layout")
	}
	if v.Float("help_seeking_rate") < 0.05 && v.Float("total_events") >= 50 {
		uiChanges = append(uiChanges, "hide_advanced_options")
	}
	if v.Float("help_seeking_rate") > 0.1 {
		uiChanges = append(uiChanges, "show_guided_hints")
	}
	if len(uiChanges) == 0 {
		uiChanges = []string{"keep_default_layout"}
	}

	return Prediction{
		Payload: map[string]any{
			"ui_changes": uiChanges,
		},
		Confidence: scaledConfidence(0.75, v),
		Reasoning:  "User device and usage patterns",
	}, nil
}

func dominantDevice(v features.Vector) string {
	devices, ok := v["device_type_distribution"].(map[string]int)
	if !ok || len(devices) == 0 {
		return ""
	}
	best, bestCount := "", -1
	for device, count := range devices {
		if count > bestCount || (count == bestCount && device < best) {
			best, bestCount = device, count
		}
	}
	return best
}

// clinicalStrategy surfaces clinical assessment suggestions from past
// clinical decision patterns.
type clinicalStrategy struct{}

func (clinicalStrategy) ModelType() ModelType { return ModelClinicalDecision }

func (clinicalStrategy) Predict(v features.Vector) (Prediction, error) {
	if err := requireSignal(v); err != nil {
		return Prediction{}, err
	}
	suggestions := topOptions(v, "clinical_decision_patterns")
	if len(suggestions) == 0 {
		return Prediction{}, fmt.Errorf("%w: no clinical decision history", ErrInsufficientSignal)
	}

	return Prediction{
		Payload: map[string]any{
			"clinical_suggestions": suggestions,
		},
		Confidence: scaledConfidence(0.9, v),
		Reasoning:  "Clinical decision patterns and outcomes",
	}, nil
}
