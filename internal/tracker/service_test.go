package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"behaviortrace/internal/event"
	id "behaviortrace/pkg/domain"
	"behaviortrace/pkg/requestcontext"
	"behaviortrace/pkg/testutil"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type capturingPublisher struct {
	published []event.Event
	err       error
}

func (p *capturingPublisher) Publish(_ context.Context, e event.Event) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, e)
	return nil
}

type failingStore struct{ event.Store }

func (failingStore) Append(context.Context, event.Event) error {
	return errors.New("store down")
}

func authedCtx(userID id.UserID) context.Context {
	ctx := testutil.AuthenticatedContext(userID.String(), "provider", "sess-abc")
	return testutil.RequestContext(ctx, "203.0.113.7", chromeUA, "/orders/new", "POST")
}

func onlyEvent(t *testing.T, store *event.InMemoryStore, userID id.UserID) event.Event {
	t.Helper()
	events, err := store.ListByUser(context.Background(), userID, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func TestTrack_AnonymousIsNoOp(t *testing.T) {
	store := event.NewInMemoryStore()
	cache := event.NewInMemoryRecentCache()
	publisher := &capturingPublisher{}
	svc, err := New(store, WithPublisher(publisher), WithRecentCache(cache))
	require.NoError(t, err)

	svc.Track(context.Background(), "page_view", map[string]any{"page": "home"}, nil)

	all, err := store.ListSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, all, "anonymous tracking must not write to the store")
	assert.Empty(t, publisher.published, "anonymous tracking must not publish")
}

func TestTrack_EmptyEventTypeDropped(t *testing.T) {
	store := event.NewInMemoryStore()
	svc, err := New(store)
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	svc.Track(authedCtx(userID), "", map[string]any{"k": "v"}, nil)

	all, err := store.ListSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTrack_SanitizesBeforeAnyHandOff(t *testing.T) {
	store := event.NewInMemoryStore()
	publisher := &capturingPublisher{}
	cache := event.NewInMemoryRecentCache()
	svc, err := New(store, WithPublisher(publisher), WithRecentCache(cache))
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	svc.Track(authedCtx(userID), "form_interaction", map[string]any{
		"form_name":   "patient_intake",
		"patient_ssn": "123-45-6789",
		"notes":       "call back re 555-1234",
	}, nil)

	stored := onlyEvent(t, store, userID)
	assert.NotContains(t, stored.Data, "patient_ssn")
	assert.Equal(t, "patient_intake", stored.Data["form_name"])

	require.Len(t, publisher.published, 1)
	assert.NotContains(t, publisher.published[0].Data, "patient_ssn")

	cached, err := cache.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.NotContains(t, cached[0].Data, "patient_ssn")
}

func TestTrack_AssemblesCanonicalEvent(t *testing.T) {
	store := event.NewInMemoryStore()
	svc, err := New(store)
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	svc.Track(authedCtx(userID), "workflow_step",
		map[string]any{"workflow_name": "quick_request", "action": "start"}, nil)

	e := onlyEvent(t, store, userID)
	assert.True(t, len(e.ID) > 4 && e.ID[:4] == "evt_")
	assert.Equal(t, userID, e.UserID)
	assert.Equal(t, "provider", e.UserRole)
	assert.Equal(t, "sess-abc", e.SessionID)
	assert.Equal(t, event.CategoryWorkflow, e.Category)
	assert.Equal(t, "/orders/new", e.URLPath)
	assert.Equal(t, "POST", e.HTTPMethod)

	assert.NotEmpty(t, e.IPHash)
	assert.NotContains(t, e.IPHash, "203.0.113.7", "raw IP must never be stored")
	assert.Len(t, e.IPHash, 64)
	assert.NotEmpty(t, e.UserAgentHash)
	assert.NotEqual(t, chromeUA, e.UserAgentHash)

	assert.Equal(t, "desktop", e.BrowserInfo["device_type"])
	assert.Equal(t, "chrome", e.BrowserInfo["browser_family"])
	assert.Equal(t, false, e.BrowserInfo["is_mobile"])
}

func TestTrack_MobileDeviceClassification(t *testing.T) {
	store := event.NewInMemoryStore()
	svc, err := New(store)
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	ctx := testutil.AuthenticatedContext(userID.String(), "provider", "sess-m")
	ctx = testutil.RequestContext(ctx, "198.51.100.2", iphoneUA, "/", "GET")

	svc.Track(ctx, "page_view", nil, nil)

	e := onlyEvent(t, store, userID)
	assert.Equal(t, "mobile", e.BrowserInfo["device_type"])
}

func TestTrack_SideEffectFailuresAreIsolated(t *testing.T) {
	publisher := &capturingPublisher{}
	cache := event.NewInMemoryRecentCache()
	svc, err := New(failingStore{}, WithPublisher(publisher), WithRecentCache(cache))
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	// Must not panic or propagate the store failure; later side effects
	// still run.
	svc.Track(authedCtx(userID), "page_view", nil, nil)

	assert.Len(t, publisher.published, 1, "publish still happens after store failure")
	cached, err := cache.List(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, cached, 1, "cache push still happens after store failure")
}

func TestTrack_PublisherFailureDoesNotBlockCache(t *testing.T) {
	store := event.NewInMemoryStore()
	publisher := &capturingPublisher{err: errors.New("broker down")}
	cache := event.NewInMemoryRecentCache()
	svc, err := New(store, WithPublisher(publisher), WithRecentCache(cache))
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	svc.Track(authedCtx(userID), "page_view", nil, nil)

	onlyEvent(t, store, userID)
	cached, err := cache.List(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestTrackFormInteraction(t *testing.T) {
	store := event.NewInMemoryStore()
	svc, err := New(store)
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	svc.TrackFormInteraction(authedCtx(userID), "ivr_form", "patient_phone",
		FormActionChange, "555-0100")

	e := onlyEvent(t, store, userID)
	assert.Equal(t, "form_interaction", e.Type)
	assert.Equal(t, "phone", e.Data["field_type"])
	assert.Equal(t, true, e.Data["has_value"])
	assert.Equal(t, 8, e.Data["value_length"])
	assert.NotContains(t, e.Data, "value", "field values are never recorded")
}

func TestTrackDecision_OptionPosition(t *testing.T) {
	store := event.NewInMemoryStore()
	svc, err := New(store)
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	svc.TrackDecision(authedCtx(userID), "product_selection", "graft_b",
		[]string{"graft_a", "graft_b", "graft_c"},
		DecisionContext{DecisionTimeMS: 12000, RecommendationShown: true, FollowedRecommendation: true})

	e := onlyEvent(t, store, userID)
	assert.Equal(t, event.CategoryDecision, e.Category)
	assert.Equal(t, 1, e.Data["option_position"])
	assert.Equal(t, 3, e.Data["total_options"])
	assert.Equal(t, true, e.Data["recommendation_shown"])
}

func TestTrackSearch_QueryNeverStoredVerbatim(t *testing.T) {
	store := event.NewInMemoryStore()
	svc, err := New(store)
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	svc.TrackSearch(authedCtx(userID), "product", "collagen wound dressing",
		map[string]any{"size": "4x4"}, 12)

	e := onlyEvent(t, store, userID)
	assert.Equal(t, 24, e.Data["query_length"])
	assert.Equal(t, 3, e.Data["query_words"])
	assert.Equal(t, 12, e.Data["results_count"])
	assert.NotContains(t, e.Data, "query")
}

func TestTrackAIInteraction_SatisfactionOnlyWhenReported(t *testing.T) {
	store := event.NewInMemoryStore()
	svc, err := New(store)
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	svc.TrackAIInteraction(authedCtx(userID), "field_mapping", AIActionAccept,
		AIInteractionData{ConfidenceScore: 0.92})

	e := onlyEvent(t, store, userID)
	assert.Equal(t, event.CategoryAI, e.Category)
	assert.NotContains(t, e.Data, "user_satisfaction")
}

func TestTrackError_ClassifiesMessageWithoutStoringIt(t *testing.T) {
	store := event.NewInMemoryStore()
	svc, err := New(store)
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	svc.TrackError(authedCtx(userID), "api_error",
		"network unreachable while contacting payer",
		ErrorContext{RecoveryAction: "retry", RecoverySuccessful: true, FrustrationLevel: 2})

	e := onlyEvent(t, store, userID)
	assert.Equal(t, "network", e.Data["error_category"])
	assert.Equal(t, true, e.Data["recovery_successful"])
	assert.Equal(t, 2, e.Data["user_frustration_level"])
	for _, v := range e.Data {
		s, ok := v.(string)
		if ok {
			assert.NotContains(t, s, "unreachable", "raw error message must not be stored")
		}
	}
}

func TestTrack_RequestTimeUsedForEventTimestamp(t *testing.T) {
	store := event.NewInMemoryStore()
	svc, err := New(store)
	require.NoError(t, err)
	userID := id.UserID(uuid.New())

	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	ctx := testutil.AuthenticatedContext(userID.String(), "provider", "sess-t")
	ctx = requestcontext.WithTime(ctx, at)

	svc.Track(ctx, "page_view", nil, nil)

	e := onlyEvent(t, store, userID)
	assert.Equal(t, at, e.CreatedAt)
}
