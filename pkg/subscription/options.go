package subscription

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

const (
	DefaultCallTimeout = 10 * time.Second
	DefaultLockTTL     = 30 * time.Second
	DefaultConcurrency = 4
	DefaultBatchSize   = 100
)

// Option configures NewService, NewReconciler and NewTrialProvisioner.
// Options that do not apply to a component are ignored by it.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	metrics     *Metrics
	locker      Locker
	notifier    Notifier
	now         func() time.Time
	callTimeout time.Duration
	lockTTL     time.Duration
	refresh     bool
	concurrency int
	batchSize   int
	limiter     *rate.Limiter
}

func newOptions(opts []Option) options {
	o := options{
		logger:      logger.Discard(),
		locker:      NewMemoryLocker(),
		notifier:    noopNotifier{},
		now:         func() time.Time { return time.Now().UTC() },
		callTimeout: DefaultCallTimeout,
		lockTTL:     DefaultLockTTL,
		concurrency: DefaultConcurrency,
		batchSize:   DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLocker sets the per-owner lock. The default is process-local,
// use a distributed locker when more than one replica serves requests.
func WithLocker(l Locker) Option {
	return func(o *options) {
		if l != nil {
			o.locker = l
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCallTimeout bounds every single billing provider call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithLockTTL bounds how long a crashed holder keeps an owner locked.
func WithLockTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTTL = d
		}
	}
}

// WithRefreshOnRead makes Service.Get re-sync the row from the provider.
func WithRefreshOnRead(enabled bool) Option {
	return func(o *options) { o.refresh = enabled }
}

// WithConcurrency sets the reconciler worker pool size.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithBatchSize sets how many expired pauses are listed per page.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithRateLimit caps reconciler gateway calls per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		if perSecond <= 0 {
			o.limiter = nil
			return
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}
