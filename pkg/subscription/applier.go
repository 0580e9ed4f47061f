package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

const storeWriteTimeout = 5 * time.Second

// applier executes decisions: gateway calls first, in order, then one
// version-checked store update.
type applier struct {
	store       Store
	gateway     BillingGateway
	logger      *slog.Logger
	metrics     *Metrics
	callTimeout time.Duration
}

func (a *applier) apply(ctx context.Context, cur *Subscription, tr Transition, now time.Time) (*Subscription, error) {
	d, err := Decide(cur, tr, now)
	if err != nil {
		a.metrics.transition(tr.Name(), outcomeRejected)
		return nil, err
	}
	if err := d.Next.Validate(); err != nil {
		a.metrics.transition(tr.Name(), outcomeRejected)
		return nil, err
	}

	for i, call := range d.Calls {
		if err := a.invoke(ctx, d, call); err != nil {
			a.metrics.transition(tr.Name(), outcomeFailed)
			if i == 0 {
				return nil, err
			}
			// Earlier calls already changed the provider; record them locally.
			if _, perr := a.persist(ctx, cur, d.Partial(i)); perr != nil {
				a.diverged(ctx, cur, tr, perr)
				return nil, errors.Join(err, fmt.Errorf("%w: %w", ErrDiverged, perr))
			}
			return nil, err
		}
	}

	updated, err := a.persist(ctx, cur, d.Next)
	if err != nil {
		a.metrics.transition(tr.Name(), outcomeDiverged)
		a.diverged(ctx, cur, tr, err)
		return nil, fmt.Errorf("%w: %w", ErrDiverged, err)
	}

	a.metrics.transition(tr.Name(), outcomeSuccess)
	return updated, nil
}

func (a *applier) invoke(ctx context.Context, d Decision, call GatewayCall) error {
	cctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	start := time.Now()
	err := d.call(cctx, a.gateway, call)
	a.metrics.gatewayCall(call, err, time.Since(start))
	if err == nil {
		return nil
	}

	a.logger.WarnContext(ctx, "billing provider call failed",
		logger.SubscriptionID(d.Current.ID),
		logger.OwnerID(d.Current.OwnerID),
		logger.GatewayCall(call.String()),
		logger.Duration(time.Since(start)),
		logger.Error(err),
	)
	if errors.Is(err, ErrGatewayUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrGatewayUnavailable, call, err)
}

// persist writes next over cur. The provider has already changed at this
// point, so the write does not inherit the caller's cancellation.
func (a *applier) persist(ctx context.Context, cur, next *Subscription) (*Subscription, error) {
	patch := Diff(cur, next)
	if patch.IsEmpty() {
		return cur, nil
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()

	return a.store.Update(wctx, cur.ID, patch, cur.Version)
}

func (a *applier) diverged(ctx context.Context, cur *Subscription, tr Transition, err error) {
	a.logger.ErrorContext(ctx, ErrDiverged.Error(),
		logger.SubscriptionID(cur.ID),
		logger.OwnerID(cur.OwnerID),
		logger.Transition(tr.Name()),
		logger.Error(err),
	)
}
