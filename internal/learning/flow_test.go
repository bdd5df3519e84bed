package learning_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"behaviortrace/internal/dataset"
	"behaviortrace/internal/event"
	"behaviortrace/internal/features"
	"behaviortrace/internal/learning"
	"behaviortrace/internal/scorer"
	"behaviortrace/internal/tracker"
	id "behaviortrace/pkg/domain"
	"behaviortrace/pkg/testutil"
)

// Exercises the pipeline end to end: tracked interactions flow through
// the store into features, predictions, and outcome feedback.
func TestTrackToPredictionFlow(t *testing.T) {
	store := event.NewInMemoryStore()
	userID := id.UserID(uuid.New())

	trackerService, err := tracker.New(store)
	require.NoError(t, err)
	builder, err := dataset.NewBuilder(store)
	require.NoError(t, err)
	extractor, err := features.NewExtractor(store)
	require.NoError(t, err)
	learningService, err := learning.New(learning.NewInMemoryModelStore(), store,
		builder, extractor, scorer.NewRegistry())
	require.NoError(t, err)

	var predictionID string

	testutil.Given(t, "a user who worked through a quick request", func(t *testing.T) {
		ctx := testutil.AuthenticatedContext(userID.String(), "provider", "sess-flow")
		for i := 0; i < 30; i++ {
			trackerService.TrackWorkflowStep(ctx, "quick_request", "step", tracker.WorkflowActionStart,
				tracker.WorkflowStepData{})
		}
		trackerService.TrackWorkflowStep(ctx, "quick_request", "done", tracker.WorkflowActionComplete,
			tracker.WorkflowStepData{CompletionPercentage: 100})
		trackerService.TrackDecision(ctx, "product_selection", "graft_a",
			[]string{"graft_a", "graft_b"}, tracker.DecisionContext{DecisionTimeMS: 8000})

		all, err := store.ListByUser(context.Background(), userID, time.Time{})
		require.NoError(t, err)
		require.Len(t, all, 32)
	})

	testutil.When(t, "the scorer predicts from the user's features", func(t *testing.T) {
		v, err := extractor.UserFeatures(context.Background(), userID, 30)
		require.NoError(t, err)

		var prediction scorer.Prediction
		prediction, predictionID = learningService.Predict(context.Background(),
			scorer.ModelProductRecommendation, v)

		require.False(t, prediction.IsFallback)
		assert.Equal(t, []string{"graft_a"}, prediction.Payload["recommended_products"])
		require.NotEmpty(t, predictionID)
	})

	testutil.Then(t, "outcome feedback lands on the prediction log", func(t *testing.T) {
		require.NoError(t, learningService.RecordOutcome(context.Background(), predictionID, true))
	})
}
