package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

const (
	defaultLockPrefix   = "lock:"
	defaultPollInterval = 50 * time.Millisecond
	releaseTimeout      = 5 * time.Second
)

// releaseScript deletes the key only while it still holds our token,
// so an expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements subscription.Locker with SET NX PX.
// The ttl bounds how long a crashed process keeps a key locked.
type Locker struct {
	client       redis.UniversalClient
	prefix       string
	pollInterval time.Duration
	logger       *slog.Logger
}

var _ subscription.Locker = (*Locker)(nil)

// LockerOption configures NewLocker.
type LockerOption func(*Locker)

// WithLockPrefix namespaces lock keys.
func WithLockPrefix(prefix string) LockerOption {
	return func(l *Locker) { l.prefix = prefix }
}

// WithPollInterval sets how often Acquire retries a held lock.
func WithPollInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithLockLogger sets the logger used to report failed releases.
func WithLockLogger(log *slog.Logger) LockerOption {
	return func(l *Locker) {
		if log != nil {
			l.logger = log
		}
	}
}

// NewLocker panics if client is nil.
func NewLocker(client redis.UniversalClient, opts ...LockerOption) *Locker {
	if client == nil {
		panic("redis: client is required")
	}
	l := &Locker{
		client:       client,
		prefix:       defaultLockPrefix,
		pollInterval: defaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire polls until the lock is held or ctx is done.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		release, ok, err := l.TryAcquire(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock for %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// TryAcquire makes a single attempt.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		return nil, false, fmt.Errorf("lock %s: ttl must be positive", key)
	}

	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock for %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled.
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()

			n, err := releaseScript.Run(rctx, l.client, []string{fullKey}, token).Int()
			if err != nil {
				l.logger.Warn("failed to release lock", slog.String("key", key), slog.Any("error", err))
				return
			}
			if n == 0 {
				l.logger.Warn("lock expired before release", slog.String("key", key), slog.Any("error", subscription.ErrLockNotHeld))
			}
		})
	}
	return release, true, nil
}
