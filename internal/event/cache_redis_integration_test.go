//go:build integration

package event_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"behaviortrace/internal/event"
	id "behaviortrace/pkg/domain"
	"behaviortrace/pkg/testutil/containers"
)

func TestRedisRecentCache_Integration(t *testing.T) {
	redisContainer := containers.NewRedisContainer(t)
	ctx := context.Background()

	newEvent := func(userID id.UserID, n int) event.Event {
		return event.Event{
			ID:        fmt.Sprintf("evt_%03d", n),
			UserID:    userID,
			Type:      "page_view",
			Category:  event.CategoryNavigation,
			SessionID: "s1",
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
			Data:      map[string]any{"n": float64(n)},
		}
	}

	t.Run("round trips events most recent first", func(t *testing.T) {
		require.NoError(t, redisContainer.FlushAll(ctx))
		cache := event.NewRedisRecentCache(redisContainer.Client)
		userID := id.UserID(uuid.New())

		for i := 0; i < 3; i++ {
			require.NoError(t, cache.Push(ctx, userID, newEvent(userID, i)))
		}

		events, err := cache.List(ctx, userID)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, "evt_002", events[0].ID)
		assert.Equal(t, userID, events[0].UserID)
		assert.Equal(t, float64(2), events[0].Data["n"])
	})

	t.Run("caps the list at the limit", func(t *testing.T) {
		require.NoError(t, redisContainer.FlushAll(ctx))
		cache := event.NewRedisRecentCache(redisContainer.Client)
		userID := id.UserID(uuid.New())

		for i := 0; i < event.RecentCacheLimit+5; i++ {
			require.NoError(t, cache.Push(ctx, userID, newEvent(userID, i)))
		}

		events, err := cache.List(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, events, event.RecentCacheLimit)
		assert.Equal(t, fmt.Sprintf("evt_%03d", event.RecentCacheLimit+4), events[0].ID)
	})

	t.Run("sets a TTL on the key", func(t *testing.T) {
		require.NoError(t, redisContainer.FlushAll(ctx))
		cache := event.NewRedisRecentCache(redisContainer.Client)
		userID := id.UserID(uuid.New())

		require.NoError(t, cache.Push(ctx, userID, newEvent(userID, 0)))

		ttl, err := redisContainer.Client.TTL(ctx, "recent_events:"+userID.String()).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 23*time.Hour)
		assert.LessOrEqual(t, ttl, event.RecentCacheTTL)
	})

	t.Run("empty user yields empty list", func(t *testing.T) {
		require.NoError(t, redisContainer.FlushAll(ctx))
		cache := event.NewRedisRecentCache(redisContainer.Client)

		events, err := cache.List(ctx, id.UserID(uuid.New()))
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
