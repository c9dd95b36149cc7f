// Package memory is an in-process audit sink for tests and single-node runs.
package memory

import (
	"context"
	"sync"

	id "siaga/pkg/domain"
	audit "siaga/pkg/platform/audit"
)

type Sink struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Sink {
	return &Sink{}
}

func (s *Sink) Write(_ context.Context, events []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *Sink) ListByUser(_ context.Context, userID id.UserID) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// ListRecent returns up to limit of the most recently written events, oldest first.
func (s *Sink) ListRecent(_ context.Context, limit int) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(len(s.events)-limit, 0)
	return append([]audit.Event(nil), s.events[start:]...)
}

func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
