// Package event defines the canonical behavioral event record and its
// storage contracts. Events are sanitized before they reach this package and
// are immutable once created.
package event

import (
	"time"

	id "behaviortrace/pkg/domain"
)

// Category classifies events for downstream feature engineering.
type Category string

const (
	CategoryNavigation  Category = "navigation"
	CategoryForm        Category = "form"
	CategoryWorkflow    Category = "workflow"
	CategoryDecision    Category = "decision"
	CategorySearch      Category = "search"
	CategoryAI          Category = "ai"
	CategoryError       Category = "error"
	CategoryPerformance Category = "performance"
	CategoryOther       Category = "other"
)

// eventCategories maps each known event type to its category.
// The classification is static; anything unknown falls back to other.
var eventCategories = map[string]Category{
	"page_view":  CategoryNavigation,
	"link_click": CategoryNavigation,
	"menu_click": CategoryNavigation,

	"form_interaction": CategoryForm,
	"form_submit":      CategoryForm,
	"form_validation":  CategoryForm,

	"workflow_step":     CategoryWorkflow,
	"workflow_complete": CategoryWorkflow,
	"workflow_abandon":  CategoryWorkflow,

	"decision_made":     CategoryDecision,
	"product_selection": CategoryDecision,
	"clinical_choice":   CategoryDecision,

	"search_performed": CategorySearch,
	"filter_applied":   CategorySearch,
	"results_viewed":   CategorySearch,

	"ai_interaction":       CategoryAI,
	"recommendation_shown": CategoryAI,
	"suggestion_accepted":  CategoryAI,

	"error_encountered": CategoryError,
	"validation_failed": CategoryError,
	"system_error":      CategoryError,

	"slow_load":    CategoryPerformance,
	"timeout":      CategoryPerformance,
	"retry_needed": CategoryPerformance,
}

// Categorize returns the category for an event type, CategoryOther when the
// type is not in the classification table.
func Categorize(eventType string) Category {
	if cat, ok := eventCategories[eventType]; ok {
		return cat
	}
	return CategoryOther
}

// Event is one immutable, sanitized record of a user interaction.
// Raw client identity (IP, user agent) never appears here; only one-way
// hashes survive recording.
type Event struct {
	ID             string            `json:"event_id"`
	UserID         id.UserID         `json:"user_id"`
	UserRole       string            `json:"user_role"`
	FacilityID     id.FacilityID     `json:"facility_id"`
	OrganizationID id.OrganizationID `json:"organization_id"`

	Type     string   `json:"event_type"`
	Category Category `json:"event_category"`

	CreatedAt time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`

	IPHash        string `json:"ip_hash"`
	UserAgentHash string `json:"user_agent_hash"`
	URLPath       string `json:"url_path"`
	HTTPMethod    string `json:"http_method"`

	Data               map[string]any `json:"event_data"`
	Context            map[string]any `json:"context"`
	BrowserInfo        map[string]any `json:"browser_info"`
	PerformanceMetrics map[string]any `json:"performance_metrics"`
}

// DataString returns a string field from the event payload, "" when absent
// or not a string.
func (e Event) DataString(key string) string {
	if s, ok := e.Data[key].(string); ok {
		return s
	}
	return ""
}

// DataBool returns a boolean field from the event payload.
func (e Event) DataBool(key string) bool {
	b, _ := e.Data[key].(bool)
	return b
}

// DataNumber returns a numeric field from the event payload along with
// whether it was present. JSON round-trips deliver float64; recorded-in-
// process events may carry int.
func (e Event) DataNumber(key string) (float64, bool) {
	switch v := e.Data[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
