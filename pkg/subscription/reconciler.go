package subscription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// Summary reports one auto-resume run.
type Summary struct {
	Checked  int           `json:"checked"`
	Resumed  int           `json:"resumed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"` // no longer paused when its turn came
	Errors   []ItemError   `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ItemError is the failure of a single subscription within a run.
type ItemError struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Message        string    `json:"message"`
}

func (e ItemError) String() string {
	return fmt.Sprintf("subscription %s: %s", e.SubscriptionID, e.Message)
}

// Reconciler lifts collection pauses whose window has ended.
type Reconciler struct {
	applier
	locker      Locker
	notifier    Notifier
	limiter     *rate.Limiter
	concurrency int
	batchSize   int
	lockTTL     time.Duration
}

// NewReconciler panics if store or gateway is nil.
func NewReconciler(store Store, gateway BillingGateway, opts ...Option) *Reconciler {
	if store == nil {
		panic("subscription: Store is required")
	}
	if gateway == nil {
		panic("subscription: BillingGateway is required")
	}

	o := newOptions(opts)
	return &Reconciler{
		applier: applier{
			store:       store,
			gateway:     gateway,
			logger:      o.logger.With(logger.Component("reconciler")),
			metrics:     o.metrics,
			callTimeout: o.callTimeout,
		},
		locker:      o.locker,
		notifier:    o.notifier,
		limiter:     o.limiter,
		concurrency: o.concurrency,
		batchSize:   o.batchSize,
		lockTTL:     o.lockTTL,
	}
}

type tally struct {
	mu sync.Mutex
	Summary
}

func (t *tally) add(fn func(s *Summary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.Summary)
}

// RunAutoResume resumes every subscription paused with pauseEndsAt <= now.
// Items are processed by a bounded worker pool; a failed item is recorded
// in the summary and never stops the others. Resumed rows stop matching the
// query, so running it again only retries what is still paused.
//
// A run-level error is returned only when listing fails, ctx ends, or another
// run holds the lease (ErrReconcileInProgress).
func (r *Reconciler) RunAutoResume(ctx context.Context, now time.Time) (Summary, error) {
	start := time.Now()

	lease, ok, err := r.locker.TryAcquire(ctx, ReconcileLockKey, r.leaseTTL())
	if err != nil {
		r.metrics.reconcileRun(outcomeFailed)
		return Summary{}, fmt.Errorf("failed to acquire reconcile lease: %w", err)
	}
	if !ok {
		r.metrics.reconcileRun(outcomeBusy)
		return Summary{}, ErrReconcileInProgress
	}
	defer lease()

	var (
		t       tally
		g       errgroup.Group
		afterID uuid.UUID
		runErr  error
	)
	g.SetLimit(r.concurrency)

	for runErr == nil {
		page, err := r.store.ListExpiredPauses(ctx, now, afterID, r.batchSize)
		if err != nil {
			runErr = fmt.Errorf("failed to list expired pauses: %w", err)
			break
		}

		for _, sub := range page {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			t.add(func(s *Summary) { s.Checked++ })
			g.Go(func() error {
				r.resumeOne(ctx, sub, now, &t)
				return nil
			})
		}

		if len(page) < r.batchSize {
			break
		}
		afterID = page[len(page)-1].ID
	}
	_ = g.Wait()

	sum := t.Summary
	sum.Duration = time.Since(start)
	slices.SortFunc(sum.Errors, func(a, b ItemError) int {
		return bytes.Compare(a.SubscriptionID[:], b.SubscriptionID[:])
	})

	outcome := outcomeSuccess
	level := slog.LevelInfo
	if runErr != nil || sum.Failed > 0 {
		outcome = outcomeFailed
		level = slog.LevelWarn
	}
	r.metrics.reconcileRun(outcome)
	r.logger.Log(ctx, level, "auto-resume run finished",
		logger.Count("checked", sum.Checked),
		logger.Count("resumed", sum.Resumed),
		logger.Count("failed", sum.Failed),
		logger.Count("skipped", sum.Skipped),
		logger.Duration(sum.Duration),
		logger.Error(runErr),
	)

	return sum, runErr
}

func (r *Reconciler) resumeOne(ctx context.Context, listed *Subscription, now time.Time, t *tally) {
	fail := func(err error) {
		r.metrics.reconcileItem(outcomeFailed)
		r.logger.WarnContext(ctx, "auto-resume failed",
			logger.SubscriptionID(listed.ID),
			logger.OwnerID(listed.OwnerID),
			logger.Error(err),
		)
		t.add(func(s *Summary) {
			s.Failed++
			s.Errors = append(s.Errors, ItemError{
				SubscriptionID: listed.ID,
				OwnerID:        listed.OwnerID,
				Message:        err.Error(),
			})
		})
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			fail(err)
			return
		}
	}

	lctx, cancel := context.WithTimeout(ctx, r.lockTTL)
	release, err := r.locker.Acquire(lctx, OwnerLockKey(listed.OwnerID), r.lockTTL)
	cancel()
	if err != nil {
		fail(errors.Join(ErrOwnerBusy, err))
		return
	}
	defer release()

	// The listed row may be stale: a user could have resumed or cancelled meanwhile.
	cur, err := r.store.GetByID(ctx, listed.ID)
	if err != nil {
		fail(fmt.Errorf("failed to reload subscription: %w", err))
		return
	}
	if !cur.IsPaused() || !cur.PauseExpired(now) {
		r.metrics.reconcileItem(outcomeSkipped)
		t.add(func(s *Summary) { s.Skipped++ })
		return
	}

	updated, err := r.apply(ctx, cur, Resume{}, now)
	if err != nil {
		fail(err)
		return
	}

	r.metrics.reconcileItem(outcomeSuccess)
	t.add(func(s *Summary) { s.Resumed++ })
	r.logger.InfoContext(ctx, "subscription auto-resumed",
		logger.SubscriptionID(updated.ID),
		logger.OwnerID(updated.OwnerID),
	)

	r.notify(ctx, updated)
}

func (r *Reconciler) notify(ctx context.Context, sub *Subscription) {
	if _, ok := r.notifier.(noopNotifier); ok {
		return
	}

	var invoice *UpcomingInvoice
	if sub.BillingRef != nil && sub.BillingRef.CustomerID != "" {
		cctx, cancel := context.WithTimeout(ctx, r.callTimeout)
		inv, err := r.gateway.FetchUpcomingInvoice(cctx, sub.BillingRef.CustomerID)
		cancel()
		if err != nil {
			r.logger.WarnContext(ctx, "failed to fetch upcoming invoice",
				logger.SubscriptionID(sub.ID),
				logger.Error(err),
			)
		} else {
			invoice = inv
		}
	}

	if err := r.notifier.SubscriptionResumed(ctx, sub, invoice); err != nil {
		r.logger.WarnContext(ctx, "failed to notify owner about resume",
			logger.SubscriptionID(sub.ID),
			logger.OwnerID(sub.OwnerID),
			logger.Error(err),
		)
	}
}

// leaseTTL keeps the run lease longer than a worst-case item.
func (r *Reconciler) leaseTTL() time.Duration {
	return max(time.Hour, 4*r.lockTTL)
}
