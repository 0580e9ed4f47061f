package subscription

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store kept in process memory. It is meant for tests and
// single-process development setups.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Subscription
	byOwner map[uuid.UUID]uuid.UUID
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(subs ...*Subscription) *MemoryStore {
	s := &MemoryStore{
		byID:    make(map[uuid.UUID]*Subscription),
		byOwner: make(map[uuid.UUID]uuid.UUID),
	}
	for _, sub := range subs {
		s.byID[sub.ID] = sub.Clone()
		s.byOwner[sub.OwnerID] = sub.ID
	}
	return s
}

func (s *MemoryStore) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOwner[ownerID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byID[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byOwner[sub.OwnerID]; ok {
		return ErrSubscriptionAlreadyExists
	}
	if _, ok := s.byID[sub.ID]; ok {
		return ErrSubscriptionAlreadyExists
	}

	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if sub.Version == 0 {
		sub.Version = 1
	}

	s.byID[sub.ID] = sub.Clone()
	s.byOwner[sub.OwnerID] = sub.ID
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, patch Patch, expectedVersion int64) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	if cur.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	next := cur.Clone()
	patch.Apply(next)
	next.Version++
	next.UpdatedAt = time.Now().UTC()

	s.byID[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) ListExpiredPauses(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Subscription
	for id, sub := range s.byID {
		if sub.PausedAt == nil || !sub.PauseExpired(now) {
			continue
		}
		if bytes.Compare(id[:], afterID[:]) <= 0 {
			continue
		}
		out = append(out, sub.Clone())
	}

	slices.SortFunc(out, func(a, b *Subscription) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
