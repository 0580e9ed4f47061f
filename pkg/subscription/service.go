package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// Service orchestrates user-initiated lifecycle transitions.
// Every method requires actorID to hold RoleOwner for ownerID.
type Service interface {
	// Get returns the owner's subscription, re-synced from the provider when
	// refresh on read is enabled. Provider failures fall back to the local row.
	Get(ctx context.Context, actorID, ownerID uuid.UUID) (*Subscription, error)

	// Refresh re-syncs the local row from the provider.
	Refresh(ctx context.Context, actorID, ownerID uuid.UUID) (*Subscription, error)

	Pause(ctx context.Context, actorID, ownerID uuid.UUID, months int) (*Subscription, error)
	Resume(ctx context.Context, actorID, ownerID uuid.UUID) (*Subscription, error)
	Cancel(ctx context.Context, actorID, ownerID uuid.UUID) (*Subscription, error)
	UndoCancel(ctx context.Context, actorID, ownerID uuid.UUID) (*Subscription, error)

	UpcomingInvoice(ctx context.Context, actorID, ownerID uuid.UUID) (*UpcomingInvoice, error)
}

type service struct {
	applier
	roles   RoleChecker
	locker  Locker
	now     func() time.Time
	lockTTL time.Duration
	refresh bool
}

// NewService creates the lifecycle service.
// Panics if store, gateway or roles is nil.
func NewService(store Store, gateway BillingGateway, roles RoleChecker, opts ...Option) Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if gateway == nil {
		panic("subscription: BillingGateway is required")
	}
	if roles == nil {
		panic("subscription: RoleChecker is required")
	}

	o := newOptions(opts)
	return &service{
		applier: applier{
			store:       store,
			gateway:     gateway,
			logger:      o.logger.With(logger.Component("subscription")),
			metrics:     o.metrics,
			callTimeout: o.callTimeout,
		},
		roles:   roles,
		locker:  o.locker,
		now:     o.now,
		lockTTL: o.lockTTL,
		refresh: o.refresh,
	}
}

func (s *service) Pause(ctx context.Context, actorID, ownerID uuid.UUID, months int) (*Subscription, error) {
	return s.transition(ctx, actorID, ownerID, Pause{Months: months})
}

func (s *service) Resume(ctx context.Context, actorID, ownerID uuid.UUID) (*Subscription, error) {
	return s.transition(ctx, actorID, ownerID, Resume{})
}

func (s *service) Cancel(ctx context.Context, actorID, ownerID uuid.UUID) (*Subscription, error) {
	return s.transition(ctx, actorID, ownerID, Cancel{})
}

func (s *service) UndoCancel(ctx context.Context, actorID, ownerID uuid.UUID) (*Subscription, error) {
	return s.transition(ctx, actorID, ownerID, UndoCancel{})
}

func (s *service) transition(ctx context.Context, actorID, ownerID uuid.UUID, tr Transition) (*Subscription, error) {
	if err := s.authorize(ctx, actorID, ownerID); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	cur, err := s.store.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	updated, err := s.apply(ctx, cur, tr, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription transition applied",
		logger.SubscriptionID(updated.ID),
		logger.OwnerID(ownerID),
		logger.ActorID(actorID),
		logger.Transition(tr.Name()),
		slog.String("status", updated.Status.String()),
	)
	return updated, nil
}

func (s *service) Get(ctx context.Context, actorID, ownerID uuid.UUID) (*Subscription, error) {
	if err := s.authorize(ctx, actorID, ownerID); err != nil {
		return nil, err
	}

	cur, err := s.store.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if !s.refresh || !cur.HasBillingRef() {
		return cur, nil
	}

	// A mutation in flight owns the row; serve the local copy without writing.
	release, ok, err := s.locker.TryAcquire(ctx, OwnerLockKey(ownerID), s.lockTTL)
	if err != nil || !ok {
		if err != nil {
			s.logger.WarnContext(ctx, "failed to acquire owner lock for refresh",
				logger.OwnerID(ownerID),
				logger.Error(err),
			)
		}
		return cur, nil
	}
	defer release()

	// Reload under the lock; a transition may have finished since the first read.
	if fresh, err := s.store.GetByOwner(ctx, ownerID); err == nil {
		cur = fresh
	}

	synced, err := s.sync(ctx, cur)
	if err != nil {
		s.logger.WarnContext(ctx, "serving local subscription copy",
			logger.SubscriptionID(cur.ID),
			logger.OwnerID(ownerID),
			logger.Error(err),
		)
		return cur, nil
	}
	return synced, nil
}

func (s *service) Refresh(ctx context.Context, actorID, ownerID uuid.UUID) (*Subscription, error) {
	if err := s.authorize(ctx, actorID, ownerID); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	cur, err := s.store.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if !cur.HasBillingRef() {
		return nil, ErrNoBillingReference
	}
	return s.sync(ctx, cur)
}

func (s *service) sync(ctx context.Context, cur *Subscription) (*Subscription, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	snap, err := s.gateway.FetchSubscription(cctx, *cur.BillingRef)
	if err != nil {
		if !errors.Is(err, ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
		}
		return nil, err
	}

	next, err := MergeSnapshot(cur, snap, s.now())
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, cur, next)
}

func (s *service) UpcomingInvoice(ctx context.Context, actorID, ownerID uuid.UUID) (*UpcomingInvoice, error) {
	if err := s.authorize(ctx, actorID, ownerID); err != nil {
		return nil, err
	}

	cur, err := s.store.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if cur.BillingRef == nil || cur.BillingRef.CustomerID == "" {
		return nil, ErrNoBillingReference
	}

	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	inv, err := s.gateway.FetchUpcomingInvoice(cctx, cur.BillingRef.CustomerID)
	if err != nil {
		if !errors.Is(err, ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	return inv, nil
}

func (s *service) authorize(ctx context.Context, actorID, ownerID uuid.UUID) error {
	ok, err := s.roles.HasRole(ctx, actorID, ownerID, RoleOwner)
	if err != nil {
		return fmt.Errorf("failed to check role: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// lock waits at most lockTTL for a concurrent operation on the same owner.
func (s *service) lock(ctx context.Context, ownerID uuid.UUID) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, s.lockTTL)
	defer cancel()

	release, err := s.locker.Acquire(lctx, OwnerLockKey(ownerID), s.lockTTL)
	if err != nil {
		return nil, errors.Join(ErrOwnerBusy, err)
	}
	return release, nil
}
