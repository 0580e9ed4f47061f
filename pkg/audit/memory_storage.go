package audit

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStorage keeps events in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *MemoryStorage) Query(_ context.Context, c Criteria) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range slices.Backward(s.events) {
		if !matches(e, c) {
			continue
		}
		out = append(out, e)
		if c.Limit > 0 && len(out) == c.Limit {
			break
		}
	}
	return out, nil
}

func matches(e Event, c Criteria) bool {
	switch {
	case c.OwnerID != uuid.Nil && e.OwnerID != c.OwnerID:
		return false
	case c.Action != "" && e.Action != c.Action:
		return false
	case !c.Since.IsZero() && e.CreatedAt.Before(c.Since):
		return false
	}
	return true
}
