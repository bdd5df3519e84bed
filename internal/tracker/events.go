package tracker

import (
	"context"
	"strings"
)

// Action vocabularies for the convenience trackers. Callers outside this
// package should prefer these constants over raw strings.
const (
	FormActionFocus         = "focus"
	FormActionBlur          = "blur"
	FormActionChange        = "change"
	FormActionSubmit        = "submit"
	FormActionValidateError = "validate_error"
	FormActionStart         = "start"

	WorkflowActionStart    = "start"
	WorkflowActionComplete = "complete"
	WorkflowActionSkip     = "skip"
	WorkflowActionBack     = "back"
	WorkflowActionAbandon  = "abandon"

	AIActionRequest = "request"
	AIActionAccept  = "accept"
	AIActionReject  = "reject"
	AIActionModify  = "modify"
)

// TrackFormInteraction records a form field interaction (focus, blur,
// change, submit, validate_error). The field value itself is never recorded;
// only its presence and length are.
func (s *Service) TrackFormInteraction(ctx context.Context, formName, fieldName, action, value string) {
	data := map[string]any{
		"form_name":  formName,
		"field_name": fieldName,
		"action":     action,
		"field_type": classifyFieldType(fieldName),
		"has_value":  value != "",
	}
	if value != "" {
		data["value_length"] = len(value)
	}
	s.Track(ctx, "form_interaction", data, nil)
}

// WorkflowStepData carries optional measurements for a workflow step event.
type WorkflowStepData struct {
	DurationMS           int
	ValidationErrors     []string
	CompletionPercentage float64
	RetryCount           int
}

// TrackWorkflowStep records workflow progression (start, complete, skip,
// back, abandon).
func (s *Service) TrackWorkflowStep(ctx context.Context, workflowName, stepName, action string, data WorkflowStepData) {
	validationErrors := make([]any, len(data.ValidationErrors))
	for i, v := range data.ValidationErrors {
		validationErrors[i] = v
	}
	s.Track(ctx, "workflow_step", map[string]any{
		"workflow_name":         workflowName,
		"step_name":             stepName,
		"action":                action,
		"step_duration_ms":      data.DurationMS,
		"validation_errors":     validationErrors,
		"completion_percentage": data.CompletionPercentage,
		"retry_count":           data.RetryCount,
	}, nil)
}

// DecisionContext carries optional measurements for a decision event.
type DecisionContext struct {
	DecisionTimeMS         int
	RecommendationShown    bool
	FollowedRecommendation bool
}

// TrackDecision records a product or clinical choice among presented
// options.
func (s *Service) TrackDecision(ctx context.Context, decisionType, selectedOption string, availableOptions []string, dc DecisionContext) {
	position := -1
	options := make([]any, len(availableOptions))
	for i, opt := range availableOptions {
		options[i] = opt
		if opt == selectedOption && position < 0 {
			position = i
		}
	}
	s.Track(ctx, "decision_made", map[string]any{
		"decision_type":           decisionType,
		"selected_option":         selectedOption,
		"available_options":       options,
		"option_position":         position,
		"total_options":           len(availableOptions),
		"decision_time_ms":        dc.DecisionTimeMS,
		"recommendation_shown":    dc.RecommendationShown,
		"followed_recommendation": dc.FollowedRecommendation,
	}, nil)
}

// TrackSearch records search and filter usage. The query text is reduced to
// length and word count; the raw query is never recorded.
func (s *Service) TrackSearch(ctx context.Context, searchType, query string, filters map[string]any, resultsCount int) {
	filterNames := make([]any, 0, len(filters))
	for name := range filters {
		filterNames = append(filterNames, name)
	}
	s.Track(ctx, "search_performed", map[string]any{
		"search_type":        searchType,
		"query_length":       len(query),
		"query_words":        len(strings.Fields(query)),
		"filters_used":       filterNames,
		"filter_count":       len(filters),
		"results_count":      resultsCount,
		"results_clicked":    false,
		"search_refinements": 0,
	}, nil)
}

// AIInteractionData carries optional measurements for an AI assist event.
type AIInteractionData struct {
	ConfidenceScore  float64
	ProcessingTimeMS int
	SuggestionsCount int
	UserSatisfaction int // 1-5 rating, 0 when not reported
}

// TrackAIInteraction records AI assistance usage (request, accept, reject,
// modify).
func (s *Service) TrackAIInteraction(ctx context.Context, aiFeature, action string, data AIInteractionData) {
	payload := map[string]any{
		"ai_feature":         aiFeature,
		"action":             action,
		"confidence_score":   data.ConfidenceScore,
		"processing_time_ms": data.ProcessingTimeMS,
		"suggestions_count":  data.SuggestionsCount,
	}
	if data.UserSatisfaction > 0 {
		payload["user_satisfaction"] = data.UserSatisfaction
	}
	s.Track(ctx, "ai_interaction", payload, nil)
}

// ErrorContext carries recovery details for an error event.
type ErrorContext struct {
	RecoveryAction     string
	RecoverySuccessful bool
	FrustrationLevel   int
	SupportContacted   bool
}

// TrackError records an error and its recovery outcome. The message is only
// used for keyword classification and is not stored verbatim.
func (s *Service) TrackError(ctx context.Context, errorType, errorMessage string, ec ErrorContext) {
	payload := map[string]any{
		"error_type":          errorType,
		"error_category":      classifyError(errorMessage),
		"recovery_action":     ec.RecoveryAction,
		"recovery_successful": ec.RecoverySuccessful,
		"support_contacted":   ec.SupportContacted,
	}
	if ec.FrustrationLevel > 0 {
		payload["user_frustration_level"] = ec.FrustrationLevel
	}
	s.Track(ctx, "error_encountered", payload, nil)
}

// classifyFieldType buckets a field name for feature engineering.
func classifyFieldType(fieldName string) string {
	lower := strings.ToLower(fieldName)
	switch {
	case strings.Contains(lower, "phone"):
		return "phone"
	case strings.Contains(lower, "email"):
		return "email"
	case strings.Contains(lower, "date"):
		return "date"
	case strings.Contains(lower, "npi"):
		return "npi"
	case strings.Contains(lower, "address"):
		return "address"
	default:
		return "text"
	}
}

// classifyError buckets an error message by keyword.
func classifyError(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "validation"):
		return "validation"
	case strings.Contains(lower, "network"):
		return "network"
	case strings.Contains(lower, "timeout"):
		return "timeout"
	case strings.Contains(lower, "authorization"):
		return "auth"
	default:
		return "unknown"
	}
}
