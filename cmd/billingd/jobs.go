package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/scheduler"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

const autoResumeJob = "auto_resume"

// autoResumeRun keeps the summary of the last auto-resume pass.
type autoResumeRun struct {
	ran     bool
	summary subscription.Summary
}

// autoResumeScheduler registers the auto-resume job. The lease keeps replicas and
// one-off `billingd reconcile` runs from overlapping.
func (a *app) autoResumeScheduler(log *slog.Logger, reconciler *subscription.Reconciler, last *autoResumeRun) (*scheduler.Scheduler, error) {
	sched := scheduler.New(
		scheduler.WithLogger(log),
		scheduler.WithLocker(a.locker, time.Hour),
	)
	schedule, err := a.cfg.Reconciler.Schedule()
	if err != nil {
		return nil, err
	}
	err = sched.Add(autoResumeJob, schedule,
		func(ctx context.Context, now time.Time) error {
			summary, err := reconciler.RunAutoResume(ctx, now.UTC())
			if last != nil {
				last.ran = true
				last.summary = summary
			}
			return err
		})
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", autoResumeJob, err)
	}
	return sched, nil
}
