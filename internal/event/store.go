package event

import (
	"context"
	"time"

	id "behaviortrace/pkg/domain"
)

// Store is the durable, append-only event store. Events are never updated;
// reads are window queries keyed by user and cutoff.
type Store interface {
	// Append writes one canonical event.
	Append(ctx context.Context, e Event) error

	// ListByUser returns a user's events created at or after cutoff, with
	// full result materialization.
	ListByUser(ctx context.Context, userID id.UserID, cutoff time.Time) ([]Event, error)

	// ListSince returns all events created at or after cutoff, across users.
	ListSince(ctx context.Context, cutoff time.Time) ([]Event, error)

	// CountSince returns the number of events created after t.
	CountSince(ctx context.Context, t time.Time) (int, error)
}

// Publisher hands a serialized event to the asynchronous processing queue.
// Publish is fire-and-forget from the recorder's perspective: implementations
// must not block on broker acknowledgement.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
