package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "behaviortrace/pkg/domain"
)

func TestInMemoryStore_ListByUserHonorsCutoff(t *testing.T) {
	store := NewInMemoryStore()
	userID := id.UserID(uuid.New())
	other := id.UserID(uuid.New())
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{base, base.AddDate(0, 0, 10), base.AddDate(0, 0, 20)} {
		require.NoError(t, store.Append(context.Background(), Event{
			ID: uuid.NewString(), UserID: userID, Type: "page_view",
			SessionID: "s", CreatedAt: at, Data: map[string]any{"i": i},
		}))
	}
	require.NoError(t, store.Append(context.Background(), Event{
		ID: uuid.NewString(), UserID: other, Type: "page_view",
		SessionID: "s", CreatedAt: base.AddDate(0, 0, 15), Data: map[string]any{},
	}))

	events, err := store.ListByUser(context.Background(), userID, base.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Len(t, events, 2, "events before the cutoff are excluded")
	for _, e := range events {
		assert.Equal(t, userID, e.UserID)
	}

	all, err := store.ListByUser(context.Background(), userID, base)
	require.NoError(t, err)
	assert.Len(t, all, 3, "cutoff is inclusive")
}

func TestInMemoryStore_ListSinceSpansUsers(t *testing.T) {
	store := NewInMemoryStore()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(context.Background(), Event{
			ID: uuid.NewString(), UserID: id.UserID(uuid.New()), Type: "page_view",
			SessionID: "s", CreatedAt: base.AddDate(0, 0, i), Data: map[string]any{},
		}))
	}

	events, err := store.ListSince(context.Background(), base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestInMemoryStore_CountSinceIsStrict(t *testing.T) {
	store := NewInMemoryStore()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(context.Background(), Event{
		ID: uuid.NewString(), UserID: id.UserID(uuid.New()), Type: "page_view",
		SessionID: "s", CreatedAt: at, Data: map[string]any{},
	}))

	n, err := store.CountSince(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "events exactly at the boundary do not count as new")

	n, err = store.CountSince(context.Background(), at.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCategorize(t *testing.T) {
	cases := map[string]Category{
		"page_view":         CategoryNavigation,
		"form_interaction":  CategoryForm,
		"workflow_step":     CategoryWorkflow,
		"decision_made":     CategoryDecision,
		"search_performed":  CategorySearch,
		"ai_interaction":    CategoryAI,
		"error_encountered": CategoryError,
		"slow_load":         CategoryPerformance,
		"made_up_event":     CategoryOther,
		"":                  CategoryOther,
	}
	for eventType, want := range cases {
		assert.Equal(t, want, Categorize(eventType), "event type %q", eventType)
	}
}

func TestEventJSONShape(t *testing.T) {
	userID := id.UserID(uuid.New())
	e := Event{
		ID:        "evt_abc",
		UserID:    userID,
		UserRole:  "provider",
		Type:      "form_interaction",
		Category:  CategoryForm,
		CreatedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		SessionID: "sess-1",
		Data:      map[string]any{"form_name": "intake"},
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	payload := string(raw)
	assert.Contains(t, payload, `"event_id":"evt_abc"`)
	assert.Contains(t, payload, `"user_id":"`+userID.String()+`"`)
	assert.Contains(t, payload, `"event_type":"form_interaction"`)
	assert.Contains(t, payload, `"event_category":"form"`)
}
