package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "behaviortrace/pkg/domain"
)

const recentEventsKeyPrefix = "recent_events:"

// RedisRecentCache backs RecentCache with a Redis list per user. The
// prepend-truncate-expire sequence runs in a single pipeline so concurrent
// pushes for the same user cannot corrupt the most-recent-first ordering:
// LPUSH and LTRIM are each atomic, and interleaved pipelines still leave a
// valid bounded list.
type RedisRecentCache struct {
	client *redis.Client
}

func NewRedisRecentCache(client *redis.Client) *RedisRecentCache {
	return &RedisRecentCache{client: client}
}

func (c *RedisRecentCache) Push(ctx context.Context, userID id.UserID, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cached event: %w", err)
	}

	key := recentEventsKeyPrefix + userID.String()
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(RecentCacheLimit-1))
	pipe.Expire(ctx, key, RecentCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push recent event: %w", err)
	}
	return nil
}

func (c *RedisRecentCache) List(ctx context.Context, userID id.UserID) ([]Event, error) {
	key := recentEventsKeyPrefix + userID.String()
	raw, err := c.client.LRange(ctx, key, 0, int64(RecentCacheLimit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}

	out := make([]Event, 0, len(raw))
	for _, item := range raw {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("unmarshal cached event: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
