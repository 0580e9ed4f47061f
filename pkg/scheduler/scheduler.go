package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Job is one run of a periodic task. now is the time the run was due.
type Job func(ctx context.Context, now time.Time) error

// Locker guards a job across replicas. It matches subscription.Locker.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Scheduler runs registered jobs on their schedules. Runs of the same job
// never overlap; a run that is still going when the next one is due skips it.
type Scheduler struct {
	mu            sync.Mutex
	jobs          map[string]*entry
	logger        *slog.Logger
	now           func() time.Time
	checkInterval time.Duration
	locker        Locker
	leaseTTL      time.Duration
}

type entry struct {
	name     string
	schedule Schedule
	job      Job
	next     time.Time
	running  bool
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:          make(map[string]*entry),
		logger:        slog.Default(),
		now:           time.Now,
		checkInterval: 30 * time.Second,
		leaseTTL:      time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job under a unique name.
func (s *Scheduler) Add(name string, schedule Schedule, job Job) error {
	if err := validate(schedule); err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: job %q is nil", ErrInvalidSchedule, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}
	s.jobs[name] = &entry{name: name, schedule: schedule, job: job}

	s.logger.Info("registered periodic job",
		slog.String("job", name),
		slog.String("schedule", schedule.String()),
	)
	return nil
}

// Jobs returns the registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run blocks until ctx is done, starting jobs when they are due.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if len(s.jobs) == 0 {
		s.mu.Unlock()
		return ErrNoJobs
	}
	start := s.now()
	for _, e := range s.jobs {
		e.next = e.schedule.Next(start)
		s.logger.Info("periodic job scheduled",
			slog.String("job", e.name),
			slog.Time("next_run", e.next),
		)
	}
	s.mu.Unlock()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			for _, e := range s.due(s.now()) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					s.execute(ctx, e.name, e.job, e.next)
					s.finish(e)
				}()
			}
		}
	}
}

// RunOnce runs a job immediately, outside its schedule.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, e.name, e.job, s.now())
}

// due marks every job whose time has come as running and returns snapshots.
func (s *Scheduler) due(now time.Time) []entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entry
	for _, e := range s.jobs {
		if now.Before(e.next) {
			continue
		}
		if e.running {
			s.logger.Warn("periodic job still running, skipping", slog.String("job", e.name))
			e.next = e.schedule.Next(now)
			continue
		}
		e.running = true
		out = append(out, *e)
		e.next = e.schedule.Next(now)
	}
	return out
}

func (s *Scheduler) finish(snap entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.jobs[snap.name]; ok {
		e.running = false
	}
}

func (s *Scheduler) execute(ctx context.Context, name string, job Job, at time.Time) error {
	if s.locker != nil {
		release, ok, err := s.locker.TryAcquire(ctx, "scheduler:"+name, s.leaseTTL)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to acquire job lease", slog.String("job", name), slog.Any("error", err))
			return err
		}
		if !ok {
			s.logger.InfoContext(ctx, "periodic job runs elsewhere", slog.String("job", name))
			return nil
		}
		defer release()
	}

	start := time.Now()
	err := job(ctx, at)
	attrs := []any{
		slog.String("job", name),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "periodic job failed", append(attrs, slog.Any("error", err))...)
		return err
	}
	s.logger.InfoContext(ctx, "periodic job finished", attrs...)
	return nil
}
