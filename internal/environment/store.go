package environment

import (
	"context"
	"sync"
)

// Store holds the latest environment snapshot and replays it to late
// subscribers, so a newly attached consumer never waits for the next
// upstream update.
type Store struct {
	mu          sync.Mutex
	current     Environment
	subscribers map[int]chan Environment
	nextID      int
}

// NewStore creates a store holding the given initial snapshot.
func NewStore(initial Environment) *Store {
	return &Store{
		current:     initial,
		subscribers: make(map[int]chan Environment, 2),
	}
}

// Get returns the latest snapshot.
func (s *Store) Get() Environment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Set replaces the snapshot and notifies subscribers.
//
// A subscriber that has not consumed the previous snapshot is coalesced to
// the latest one: intermediate snapshots may be skipped, but delivery order
// is never violated.
func (s *Store) Set(env Environment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = env

	for _, ch := range s.subscribers {
		select {
		case ch <- env:
		default:
			// Full: drop the undelivered snapshot, keep only the newest.
			// Only Set sends on subscriber channels, so after the drain the
			// one-slot buffer cannot refill under us.
			select {
			case <-ch:
			default:
			}

			ch <- env
		}
	}
}

// Subscribe registers a consumer for snapshot updates.
//
// The returned channel immediately yields the latest snapshot, then each
// subsequent one (coalesced if the consumer is slow). It is closed when ctx
// is done.
func (s *Store) Subscribe(ctx context.Context) <-chan Environment {
	ch := make(chan Environment, 1)

	s.mu.Lock()

	id := s.nextID
	s.nextID++
	s.subscribers[id] = ch
	ch <- s.current

	s.mu.Unlock()

	go func() {
		<-ctx.Done()

		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()

		close(ch)
	}()

	return ch
}
