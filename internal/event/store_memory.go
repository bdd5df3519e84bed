package event

import (
	"context"
	"sync"
	"time"

	id "behaviortrace/pkg/domain"
)

// InMemoryStore keeps events per user behind an RWMutex. Suitable for tests
// and single-process deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.UserID][]Event
	seen   map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[id.UserID][]Event),
		seen:   make(map[string]struct{}),
	}
}

// Append is idempotent on event ID, matching the Postgres store's
// conflict handling: the recorder and the queue consumer may both hand
// the same event to the store.
func (s *InMemoryStore) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID != "" {
		if _, dup := s.seen[e.ID]; dup {
			return nil
		}
		s.seen[e.ID] = struct{}{}
	}
	s.events[e.UserID] = append(s.events[e.UserID], e)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID, cutoff time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events[userID] {
		if !e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListSince(_ context.Context, cutoff time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, userEvents := range s.events {
		for _, e := range userEvents {
			if !e.CreatedAt.Before(cutoff) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (s *InMemoryStore) CountSince(_ context.Context, t time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, userEvents := range s.events {
		for _, e := range userEvents {
			if e.CreatedAt.After(t) {
				count++
			}
		}
	}
	return count, nil
}

// Clear drops all stored events. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.UserID][]Event)
}
