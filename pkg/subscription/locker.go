package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker serializes work on a key across goroutines or processes.
// ttl bounds how long a crashed holder can keep the lock.
type Locker interface {
	// Acquire blocks until the lock is held or ctx is done.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
	// TryAcquire returns ok=false immediately if the lock is held elsewhere.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// OwnerLockKey is the lock key guarding all mutations of an owner's subscription.
func OwnerLockKey(ownerID uuid.UUID) string {
	return "subscription:owner:" + ownerID.String()
}

// ReconcileLockKey is the lease key of the auto-resume job.
const ReconcileLockKey = "subscription:reconcile:auto-resume"

// MemoryLocker is a process-local Locker. The ttl is ignored: holders in
// the same process always release.
type MemoryLocker struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
}

// NewMemoryLocker returns an empty process-local locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{keys: make(map[string]chan struct{})}
}

func (l *MemoryLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.keys[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.keys[key] = ch
	}
	return ch
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return releaseFunc(ch), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire lock for %s: %w", key, ctx.Err())
	}
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, key string, _ time.Duration) (func(), bool, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return releaseFunc(ch), true, nil
	default:
		return nil, false, nil
	}
}

func releaseFunc(ch chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}
}
