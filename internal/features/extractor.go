// Package features computes fixed-shape behavioral feature vectors from a
// user's sanitized event history. Extraction is read-only, deterministic,
// and order-independent: aggregations rely on set grouping and timestamp
// comparison, never on arrival order.
package features

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"behaviortrace/internal/event"
	id "behaviortrace/pkg/domain"
)

// Vector is a flat feature-name to value mapping. Keys are stable across
// calls so downstream consumers can treat the vector as a schema; pattern
// features are nested sub-maps under their own keys.
type Vector map[string]any

// DefaultWindowDays is the lookback window used when callers pass days < 1.
const DefaultWindowDays = 30

// DefaultPeakHour is reported when the user has no events in the window.
const DefaultPeakHour = 9

// decisionBaselineMS is the reference decision time: decisions at or below
// it map to full confidence.
const decisionBaselineMS = 30000.0

// optimalWorkflowSteps is the static optimal-step lookup used by the
// navigation efficiency feature.
var optimalWorkflowSteps = map[string]int{
	"quick_request":          5,
	"order_creation":         8,
	"patient_registration":   6,
	"insurance_verification": 4,
}

const defaultOptimalSteps = 10

// Extractor computes feature vectors against a durable event store.
// Extractors are stateless and safe for concurrent use.
type Extractor struct {
	store event.Store
	now   func() time.Time
}

type ExtractorOption func(*Extractor)

// WithClock fixes the extractor's notion of now. Test helper.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) { e.now = now }
}

func NewExtractor(store event.Store, opts ...ExtractorOption) (*Extractor, error) {
	if store == nil {
		return nil, fmt.Errorf("event store is required")
	}
	e := &Extractor{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// UserFeatures computes the feature vector for one user over a trailing
// window of days (minimum 1; defaulted to 30 when smaller). Sparse or empty
// history yields the documented defaults, never an error from aggregation.
func (x *Extractor) UserFeatures(ctx context.Context, userID id.UserID, days int) (Vector, error) {
	if days < 1 {
		days = DefaultWindowDays
	}

	ctx, span := otel.Tracer("behaviortrace/features").Start(ctx, "features.user")
	defer span.End()

	cutoff := x.now().AddDate(0, 0, -days)
	events, err := x.store.ListByUser(ctx, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list events for features: %w", err)
	}
	span.SetAttributes(
		attribute.Int("window_days", days),
		attribute.Int("event_count", len(events)),
	)

	return FromEvents(events), nil
}

// FromEvents computes the feature vector from an already-materialized event
// set. The dataset builder uses this form to avoid re-querying per user.
func FromEvents(events []event.Event) Vector {
	v := Vector{}

	activityFeatures(v, events)
	formFeatures(v, events)
	workflowFeatures(v, events)
	decisionFeatures(v, events)
	searchFeatures(v, events)
	aiFeatures(v, events)
	errorFeatures(v, events)
	contextFeatures(v, events)

	return v
}

// ---------------------------------------------------------------------------
// Activity
// ---------------------------------------------------------------------------

func activityFeatures(v Vector, events []event.Event) {
	v["total_events"] = len(events)

	days := map[string]struct{}{}
	for _, e := range events {
		days[e.CreatedAt.Format("2006-01-02")] = struct{}{}
	}
	v["active_days"] = len(days)

	v["avg_session_length"] = averageSessionLength(events)
	v["peak_activity_hour"] = peakActivityHour(events)
}

func averageSessionLength(events []event.Event) float64 {
	sessions := map[string][2]time.Time{}
	for _, e := range events {
		bounds, ok := sessions[e.SessionID]
		if !ok {
			sessions[e.SessionID] = [2]time.Time{e.CreatedAt, e.CreatedAt}
			continue
		}
		if e.CreatedAt.Before(bounds[0]) {
			bounds[0] = e.CreatedAt
		}
		if e.CreatedAt.After(bounds[1]) {
			bounds[1] = e.CreatedAt
		}
		sessions[e.SessionID] = bounds
	}
	if len(sessions) == 0 {
		return 0
	}

	var total float64
	for _, bounds := range sessions {
		total += bounds[1].Sub(bounds[0]).Seconds()
	}
	return total / float64(len(sessions))
}

func peakActivityHour(events []event.Event) int {
	if len(events) == 0 {
		return DefaultPeakHour
	}

	counts := map[int]int{}
	order := []int{}
	for _, e := range events {
		hour := e.CreatedAt.Hour()
		if _, seen := counts[hour]; !seen {
			order = append(order, hour)
		}
		counts[hour]++
	}

	// Descending by count; ties keep first-encountered ordering.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order[0]
}

// ---------------------------------------------------------------------------
// Form interaction
// ---------------------------------------------------------------------------

func formFeatures(v Vector, events []event.Event) {
	var formEvents []event.Event
	for _, e := range events {
		if e.Type == "form_interaction" {
			formEvents = append(formEvents, e)
		}
	}

	starts, submits, errors, focuses, blurs := 0, 0, 0, 0, 0
	for _, e := range formEvents {
		switch e.DataString("action") {
		case "start":
			starts++
		case "submit":
			submits++
		case "validate_error":
			errors++
		case "focus":
			focuses++
		case "blur":
			blurs++
		}
	}

	v["form_completion_rate"] = ratio(submits, starts)
	v["avg_form_fill_time"] = averageFormFillTime(formEvents)
	v["validation_error_rate"] = ratio(errors, len(formEvents))

	// May go negative when more blurs than focuses are observed. Known
	// quirk, kept as-is.
	if focuses > 0 {
		v["field_abandon_rate"] = float64(focuses-blurs) / float64(focuses)
	} else {
		v["field_abandon_rate"] = 0.0
	}
}

func averageFormFillTime(formEvents []event.Event) float64 {
	type bounds struct {
		start, submit time.Time
		hasStart      bool
		hasSubmit     bool
	}
	forms := map[string]*bounds{}
	order := []string{}
	for _, e := range formEvents {
		name := e.DataString("form_name")
		b, ok := forms[name]
		if !ok {
			b = &bounds{}
			forms[name] = b
			order = append(order, name)
		}
		switch e.DataString("action") {
		case "start":
			if !b.hasStart || e.CreatedAt.Before(b.start) {
				b.start = e.CreatedAt
				b.hasStart = true
			}
		case "submit":
			if !b.hasSubmit || e.CreatedAt.Before(b.submit) {
				b.submit = e.CreatedAt
				b.hasSubmit = true
			}
		}
	}

	var total float64
	count := 0
	for _, name := range order {
		b := forms[name]
		if b.hasStart && b.hasSubmit {
			total += b.submit.Sub(b.start).Seconds()
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// ---------------------------------------------------------------------------
// Workflow
// ---------------------------------------------------------------------------

func workflowFeatures(v Vector, events []event.Event) {
	var stepEvents []event.Event
	for _, e := range events {
		if e.Type == "workflow_step" {
			stepEvents = append(stepEvents, e)
		}
	}

	starts, completes, backs := 0, 0, 0
	workflows := map[string]int{}
	for _, e := range stepEvents {
		switch e.DataString("action") {
		case "start":
			starts++
		case "complete":
			completes++
		case "back":
			backs++
		}
		workflows[e.DataString("workflow_name")]++
	}

	v["workflow_completion_rate"] = ratio(completes, starts)
	v["workflow_back_step_rate"] = ratio(backs, len(stepEvents))

	if len(workflows) > 0 {
		total := 0
		for _, n := range workflows {
			total += n
		}
		v["avg_workflow_steps"] = float64(total) / float64(len(workflows))
	} else {
		v["avg_workflow_steps"] = 0.0
	}

	// Dedicated success rate for the quick_request workflow, counted over
	// every event naming it, not just workflow_step events.
	qrStarts, qrCompletes := 0, 0
	for _, e := range events {
		if e.DataString("workflow_name") != "quick_request" {
			continue
		}
		switch e.DataString("action") {
		case "start":
			qrStarts++
		case "complete":
			qrCompletes++
		}
	}
	v["quick_request_success_rate"] = ratio(qrCompletes, qrStarts)
}

// ---------------------------------------------------------------------------
// Decisions
// ---------------------------------------------------------------------------

func decisionFeatures(v Vector, events []event.Event) {
	shown, followed := 0, 0
	for _, e := range events {
		if e.DataBool("recommendation_shown") {
			shown++
			if e.DataBool("followed_recommendation") {
				followed++
			}
		}
	}
	v["follows_recommendations"] = ratio(followed, shown)
	v["decision_confidence"] = decisionConfidence(events)
	v["product_selection_patterns"] = selectionPatterns(events, "product_selection")
	v["clinical_decision_patterns"] = selectionPatterns(events, "clinical_assessment")
}

func decisionConfidence(events []event.Event) float64 {
	var times []float64
	decisions := 0
	for _, e := range events {
		if e.Type != "decision_made" {
			continue
		}
		decisions++
		if ms, ok := e.DataNumber("decision_time_ms"); ok && ms > 0 {
			times = append(times, ms)
		}
	}
	if decisions == 0 {
		return 0
	}
	if len(times) == 0 {
		return 0.5
	}

	var total float64
	for _, t := range times {
		total += t
	}
	avg := total / float64(len(times))
	return min(1.0, decisionBaselineMS/avg)
}

// selectionPatterns summarizes choices of one decision type: the five most
// selected options with counts, the average option position, and the
// average decision speed in milliseconds.
func selectionPatterns(events []event.Event, decisionType string) map[string]any {
	optionCounts := map[string]int{}
	optionOrder := []string{}
	var positions, speeds []float64

	for _, e := range events {
		if e.DataString("decision_type") != decisionType {
			continue
		}
		option := e.DataString("selected_option")
		if option != "" {
			if _, seen := optionCounts[option]; !seen {
				optionOrder = append(optionOrder, option)
			}
			optionCounts[option]++
		}
		if pos, ok := e.DataNumber("option_position"); ok && pos >= 0 {
			positions = append(positions, pos)
		}
		if ms, ok := e.DataNumber("decision_time_ms"); ok && ms > 0 {
			speeds = append(speeds, ms)
		}
	}

	sort.SliceStable(optionOrder, func(i, j int) bool {
		return optionCounts[optionOrder[i]] > optionCounts[optionOrder[j]]
	})
	if len(optionOrder) > 5 {
		optionOrder = optionOrder[:5]
	}
	top := map[string]int{}
	for _, option := range optionOrder {
		top[option] = optionCounts[option]
	}

	return map[string]any{
		"top_selections":  top,
		"avg_position":    mean(positions),
		"avg_decision_ms": mean(speeds),
	}
}

// ---------------------------------------------------------------------------
// Search and navigation
// ---------------------------------------------------------------------------

func searchFeatures(v Vector, events []event.Event) {
	searches := 0
	var refinements float64
	helpEvents := 0
	for _, e := range events {
		if e.Type == "search_performed" {
			searches++
			if n, ok := e.DataNumber("search_refinements"); ok {
				refinements += n
			}
		}
		if e.DataBool("help_sought") {
			helpEvents++
		}
	}

	if searches > 0 {
		v["search_refinement_rate"] = refinements / float64(searches)
	} else {
		v["search_refinement_rate"] = 0.0
	}
	v["help_seeking_rate"] = ratio(helpEvents, len(events))
	v["navigation_efficiency"] = navigationEfficiency(events)
}

func navigationEfficiency(events []event.Event) float64 {
	workflows := map[string]int{}
	for _, e := range events {
		if e.Category != event.CategoryNavigation && e.Category != event.CategoryWorkflow {
			continue
		}
		workflows[e.DataString("workflow_name")]++
	}
	if len(workflows) == 0 {
		// No navigation yet: assume perfectly efficient.
		return 1.0
	}

	var total float64
	for name, actual := range workflows {
		optimal, ok := optimalWorkflowSteps[name]
		if !ok {
			optimal = defaultOptimalSteps
		}
		total += min(1.0, float64(optimal)/float64(actual))
	}
	return total / float64(len(workflows))
}

// ---------------------------------------------------------------------------
// AI interaction
// ---------------------------------------------------------------------------

func aiFeatures(v Vector, events []event.Event) {
	requests, accepts, modifications := 0, 0, 0
	var satisfaction []float64
	for _, e := range events {
		if e.Type != "ai_interaction" {
			continue
		}
		switch e.DataString("action") {
		case "request":
			requests++
		case "accept":
			accepts++
		case "modify":
			modifications++
		}
		if score, ok := e.DataNumber("user_satisfaction"); ok && score > 0 {
			satisfaction = append(satisfaction, score)
		}
	}

	v["ai_acceptance_rate"] = ratio(accepts, requests)
	v["ai_modification_rate"] = ratio(modifications, requests)
	if len(satisfaction) > 0 {
		v["ai_satisfaction_score"] = mean(satisfaction)
	} else {
		// Neutral on the 1-5 scale.
		v["ai_satisfaction_score"] = 3.0
	}
}

// ---------------------------------------------------------------------------
// Errors and recovery
// ---------------------------------------------------------------------------

func errorFeatures(v Vector, events []event.Event) {
	errors, recovered := 0, 0
	var frustration []float64
	sessions := map[string]struct{}{}
	supportSessions := map[string]struct{}{}

	for _, e := range events {
		sessions[e.SessionID] = struct{}{}
		if e.Type == "error_encountered" {
			errors++
			if e.DataBool("recovery_successful") {
				recovered++
			}
		}
		if level, ok := e.DataNumber("user_frustration_level"); ok {
			frustration = append(frustration, level)
		}
		if e.DataBool("support_contacted") {
			supportSessions[e.SessionID] = struct{}{}
		}
	}

	if errors > 0 {
		v["error_recovery_success_rate"] = float64(recovered) / float64(errors)
	} else {
		// Assume healthy until an error is observed.
		v["error_recovery_success_rate"] = 1.0
	}
	v["frustration_indicator"] = mean(frustration)
	v["support_contact_rate"] = ratio(len(supportSessions), len(sessions))
}

// ---------------------------------------------------------------------------
// Device and context
// ---------------------------------------------------------------------------

func contextFeatures(v Vector, events []event.Event) {
	devices := map[string]int{}
	browsers := map[string]int{}
	hours := map[int]int{}

	for _, e := range events {
		if device, ok := e.BrowserInfo["device_type"].(string); ok && device != "" {
			devices[device]++
		}
		if browser, ok := e.BrowserInfo["browser_family"].(string); ok && browser != "" {
			browsers[browser]++
		}
		hours[e.CreatedAt.Hour()]++
	}

	v["device_type_distribution"] = devices
	v["browser_distribution"] = browsers
	v["hour_of_day_distribution"] = hours
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// ratio guards the division: zero denominator yields 0 rather than NaN.
func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
