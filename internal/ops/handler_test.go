package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
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

type fixture struct {
	handler *Handler
	events  *event.InMemoryStore
	cache   *event.InMemoryRecentCache
	service *learning.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	events := event.NewInMemoryStore()
	cache := event.NewInMemoryRecentCache()

	builder, err := dataset.NewBuilder(events)
	require.NoError(t, err)
	extractor, err := features.NewExtractor(events)
	require.NoError(t, err)
	service, err := learning.New(learning.NewInMemoryModelStore(), events,
		builder, extractor, scorer.NewRegistry())
	require.NoError(t, err)
	trackerService, err := tracker.New(events, tracker.WithRecentCache(cache))
	require.NoError(t, err)

	return &fixture{
		handler: New(cache, service, trackerService, slog.Default()),
		events:  events,
		cache:   cache,
		service: service,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.DoRequest(NewRouter(f.handler),
		testutil.NewRequestWithBody(t, method, path, body))
}

func TestHandleHealth(t *testing.T) {
	t.Run("all dependencies healthy", func(t *testing.T) {
		f := newFixture(t)
		f.handler.AddHealthCheck("postgres", func(context.Context) error { return nil })

		rec := f.do(t, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("failing dependency degrades status", func(t *testing.T) {
		f := newFixture(t)
		f.handler.AddHealthCheck("redis", func(context.Context) error {
			return errors.New("connection refused")
		})

		rec := f.do(t, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body["status"])
	})
}

func TestHandleTrack(t *testing.T) {
	t.Run("records and caches the event", func(t *testing.T) {
		f := newFixture(t)
		userID := id.UserID(uuid.New())

		rec := f.do(t, http.MethodPost, "/events", fmt.Sprintf(
			`{"user_id": %q, "role": "provider", "session_id": "s1",
			  "event_type": "form_submit", "data": {"form_name": "intake"}}`, userID))
		require.Equal(t, http.StatusAccepted, rec.Code)

		stored, err := f.events.ListByUser(context.Background(), userID, time.Time{})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "form_submit", stored[0].Type)
		assert.Equal(t, event.CategoryForm, stored[0].Category)
		assert.Equal(t, "provider", stored[0].UserRole)

		cached, err := f.cache.List(context.Background(), userID)
		require.NoError(t, err)
		assert.Len(t, cached, 1)
	})

	t.Run("rejects missing user id", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/events", `{"event_type": "page_view"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing event type", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/events", fmt.Sprintf(
			`{"user_id": %q}`, uuid.NewString()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/events", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleRecentEvents(t *testing.T) {
	f := newFixture(t)
	userID := id.UserID(uuid.New())
	require.NoError(t, f.cache.Push(context.Background(), userID, event.Event{
		ID: "evt_" + uuid.NewString(), UserID: userID, Type: "page_view",
		SessionID: "s1", CreatedAt: time.Now(), Data: map[string]any{},
	}))

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/users/%s/recent", userID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []event.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Events, 1)
}

func TestHandleRecentEvents_InvalidUserID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/users/not-a-uuid/recent", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecommendations(t *testing.T) {
	f := newFixture(t)
	userID := id.UserID(uuid.New())

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/users/%s/recommendations", userID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var bundle map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Contains(t, bundle, "overall_confidence")
	assert.Contains(t, bundle, "reasoning")
}

func TestHandleOutcome(t *testing.T) {
	f := newFixture(t)

	t.Run("unknown prediction", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/predictions/prd_missing/outcome",
			`{"accurate": true}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("records outcome", func(t *testing.T) {
		_, predictionID := f.service.Predict(context.Background(),
			scorer.ModelBehavioralPrediction, features.Vector{"total_events": 60})
		require.NotEmpty(t, predictionID)

		rec := f.do(t, http.MethodPost,
			fmt.Sprintf("/predictions/%s/outcome", predictionID),
			`{"accurate": true}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/predictions/prd_x/outcome", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleTrain(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/models/train?force=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results map[string]learning.TrainResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, len(scorer.ModelTypes()))
	for _, result := range results {
		assert.Equal(t, "insufficient training data", result.Skipped)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
