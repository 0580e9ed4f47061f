package scheduler

import (
	"log/slog"
	"time"
)

// Option configures New.
type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCheckInterval sets how often due jobs are looked for.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.checkInterval = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker makes each run take a lease so only one replica executes it.
func WithLocker(l Locker, leaseTTL time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = l
		if leaseTTL > 0 {
			s.leaseTTL = leaseTTL
		}
	}
}
