// Package dataset assembles labeled training datasets from the durable
// event store. Each sample pairs one user's feature vector with boolean
// outcome labels derived from the same event window.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"behaviortrace/internal/event"
	"behaviortrace/internal/features"
	id "behaviortrace/pkg/domain"
)

// DefaultWindowDays is the training lookback used when Options.Days < 1.
const DefaultWindowDays = 90

// qualityEventTarget is the per-user event count treated as a fully
// informative sample when scoring dataset quality.
const qualityEventTarget = 50

// highEngagementThreshold is the event count above which a user is labeled
// highly engaged.
const highEngagementThreshold = 100

// Sample is one user's row in a training dataset.
type Sample struct {
	UserID    id.UserID       `json:"user_id"`
	Features  features.Vector `json:"features"`
	Labels    map[string]any  `json:"labels"`
	Timestamp time.Time       `json:"timestamp"`
}

// Dataset is the assembled training set plus its descriptive metadata.
type Dataset struct {
	Samples  []Sample `json:"samples"`
	Metadata Metadata `json:"metadata"`
}

type Metadata struct {
	TotalUsers   int       `json:"total_users"`
	DateRange    DateRange `json:"date_range"`
	FeatureKeys  []string  `json:"feature_keys"`
	QualityScore float64   `json:"quality_score"`
	GeneratedAt  time.Time `json:"generated_at"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Options narrows a build. Zero value builds the full 90-day dataset over
// every user with events in the window.
type Options struct {
	Days    int
	UserIDs []id.UserID
}

// Builder turns raw event history into training datasets. Per-user feature
// extraction runs on a bounded worker pool; one user's bad data never sinks
// the whole build.
type Builder struct {
	store   event.Store
	logger  *slog.Logger
	now     func() time.Time
	workers int
}

type BuilderOption func(*Builder)

func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

func WithWorkers(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithClock fixes the builder's notion of now. Test helper.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

func NewBuilder(store event.Store, opts ...BuilderOption) (*Builder, error) {
	if store == nil {
		return nil, fmt.Errorf("event store is required")
	}
	b := &Builder{
		store:   store,
		logger:  slog.Default(),
		now:     time.Now,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build assembles a dataset over the trailing window. Users listed in
// opts.UserIDs are kept even with sparse history; otherwise every user with
// at least one event in the window contributes a sample.
func (b *Builder) Build(ctx context.Context, opts Options) (*Dataset, error) {
	days := opts.Days
	if days < 1 {
		days = DefaultWindowDays
	}

	ctx, span := otel.Tracer("behaviortrace/dataset").Start(ctx, "dataset.build")
	defer span.End()

	end := b.now()
	cutoff := end.AddDate(0, 0, -days)
	events, err := b.store.ListSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list events for dataset: %w", err)
	}

	byUser := groupByUser(events, opts.UserIDs)
	userIDs := make([]id.UserID, 0, len(byUser))
	for userID := range byUser {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool {
		return userIDs[i].String() < userIDs[j].String()
	})

	samples := make([]Sample, len(userIDs))
	built := make([]bool, len(userIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	var mu sync.Mutex
	for i, userID := range userIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sample, err := b.buildSample(userID, byUser[userID], end)
			if err != nil {
				// Skip the user, keep the build going.
				b.logger.Warn("skipping user in dataset build",
					"user_id", userID, "error", err)
				return nil
			}
			mu.Lock()
			samples[i] = sample
			built[i] = true
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}

	kept := samples[:0:0]
	for i, ok := range built {
		if ok {
			kept = append(kept, samples[i])
		}
	}

	ds := &Dataset{
		Samples: kept,
		Metadata: Metadata{
			TotalUsers: len(kept),
			DateRange: DateRange{
				Start: cutoff.Format("2006-01-02"),
				End:   end.Format("2006-01-02"),
			},
			FeatureKeys:  featureKeys(kept),
			QualityScore: qualityScore(kept, byUser),
			GeneratedAt:  end,
		},
	}
	span.SetAttributes(
		attribute.Int("window_days", days),
		attribute.Int("sample_count", len(kept)),
	)
	b.logger.Info("training dataset built",
		"users", len(kept),
		"window_days", days,
		"quality_score", ds.Metadata.QualityScore,
	)
	return ds, nil
}

func (b *Builder) buildSample(userID id.UserID, events []event.Event, at time.Time) (sample Sample, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feature extraction panicked: %v", r)
		}
	}()

	vector := features.FromEvents(events)
	return Sample{
		UserID:    userID,
		Features:  vector,
		Labels:    buildLabels(vector, events),
		Timestamp: at,
	}, nil
}

// buildLabels derives the boolean and scalar outcomes each model is trained
// against.
func buildLabels(vector features.Vector, events []event.Event) map[string]any {
	workflowCompleted := false
	aiUsed := false
	for _, e := range events {
		if e.Type == "workflow_step" && e.DataString("action") == "complete" {
			workflowCompleted = true
		}
		if e.Type == "ai_interaction" {
			aiUsed = true
		}
	}

	return map[string]any{
		"high_engagement":                len(events) > highEngagementThreshold,
		"successful_workflow_completion": workflowCompleted,
		"form_completion_likelihood":     vector.Float("form_completion_rate"),
		"ai_adoption":                    aiUsed,
	}
}

func groupByUser(events []event.Event, only []id.UserID) map[id.UserID][]event.Event {
	byUser := map[id.UserID][]event.Event{}
	if len(only) > 0 {
		wanted := make(map[id.UserID]struct{}, len(only))
		for _, userID := range only {
			wanted[userID] = struct{}{}
			byUser[userID] = nil
		}
		for _, e := range events {
			if _, ok := wanted[e.UserID]; ok {
				byUser[e.UserID] = append(byUser[e.UserID], e)
			}
		}
		return byUser
	}
	for _, e := range events {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}
	return byUser
}

// featureKeys reports the dataset schema, taken from the first sample. All
// samples share the same keys because extraction always emits the full
// vector.
func featureKeys(samples []Sample) []string {
	if len(samples) == 0 {
		return nil
	}
	return samples[0].Features.Keys()
}

// qualityScore is the mean per-user data sufficiency: a user with 50 or
// more events in the window counts as fully informative.
func qualityScore(samples []Sample, byUser map[id.UserID][]event.Event) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total float64
	for _, s := range samples {
		total += min(1.0, float64(len(byUser[s.UserID]))/qualityEventTarget)
	}
	return total / float64(len(samples))
}
