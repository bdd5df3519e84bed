package event

import (
	"context"
	"time"

	id "behaviortrace/pkg/domain"
)

// Recency cache bounds: the most recent 50 events per user, expiring after
// 24 hours of inactivity.
const (
	RecentCacheLimit = 50
	RecentCacheTTL   = 24 * time.Hour
)

// RecentCache is a bounded, most-recent-first per-user event list used for
// low-latency "recent activity" reads without touching the durable store.
// Push must be effectively atomic per user key: concurrent pushes for the
// same user may interleave in any order but must never corrupt the list.
type RecentCache interface {
	Push(ctx context.Context, userID id.UserID, e Event) error
	List(ctx context.Context, userID id.UserID) ([]Event, error)
}
