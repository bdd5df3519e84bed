package event

import (
	"context"
	"sync"
	"time"

	id "behaviortrace/pkg/domain"
)

// InMemoryRecentCache implements RecentCache with lazy TTL expiry. The
// mutex makes the read-modify-write of each user list atomic.
type InMemoryRecentCache struct {
	mu      sync.Mutex
	entries map[id.UserID]*recentEntry
	ttl     time.Duration
	limit   int
	now     func() time.Time
}

type recentEntry struct {
	events    []Event
	expiresAt time.Time
}

// InMemoryRecentCacheOption configures the cache; used by tests to shrink
// the TTL and limit.
type InMemoryRecentCacheOption func(*InMemoryRecentCache)

func WithTTL(ttl time.Duration) InMemoryRecentCacheOption {
	return func(c *InMemoryRecentCache) { c.ttl = ttl }
}

func WithLimit(limit int) InMemoryRecentCacheOption {
	return func(c *InMemoryRecentCache) { c.limit = limit }
}

func WithClock(now func() time.Time) InMemoryRecentCacheOption {
	return func(c *InMemoryRecentCache) { c.now = now }
}

func NewInMemoryRecentCache(opts ...InMemoryRecentCacheOption) *InMemoryRecentCache {
	c := &InMemoryRecentCache{
		entries: make(map[id.UserID]*recentEntry),
		ttl:     RecentCacheTTL,
		limit:   RecentCacheLimit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *InMemoryRecentCache) Push(_ context.Context, userID id.UserID, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry := c.entries[userID]
	if entry == nil || now.After(entry.expiresAt) {
		entry = &recentEntry{}
		c.entries[userID] = entry
	}

	entry.events = append([]Event{e}, entry.events...)
	if len(entry.events) > c.limit {
		entry.events = entry.events[:c.limit]
	}
	entry.expiresAt = now.Add(c.ttl)
	return nil
}

func (c *InMemoryRecentCache) List(_ context.Context, userID id.UserID) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[userID]
	if entry == nil {
		return nil, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, userID)
		return nil, nil
	}
	return append([]Event{}, entry.events...), nil
}
