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

// TrialStore is the part of Store used during signup. Pass a store bound to
// the signup transaction so the subscription and its owner commit together.
type TrialStore interface {
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Subscription, error)
	Create(ctx context.Context, sub *Subscription) error
}

// TrialProvisioner creates the trialing subscription of a new owner.
type TrialProvisioner struct {
	catalog *Catalog
	now     func() time.Time
	logger  *slog.Logger
}

// NewTrialProvisioner panics if catalog is nil.
func NewTrialProvisioner(catalog *Catalog, opts ...Option) *TrialProvisioner {
	if catalog == nil {
		panic("subscription: Catalog is required")
	}
	o := newOptions(opts)
	return &TrialProvisioner{
		catalog: catalog,
		now:     o.now,
		logger:  o.logger.With(logger.Component("trial_provisioner")),
	}
}

// ProvisionTrial inserts a trialing subscription without billing reference.
// A missing plan is a deployment error: ErrPlanNotFound is returned and the
// caller must abort the signup transaction. An owner that already has a
// subscription gets ErrSubscriptionAlreadyExists and no new row.
func (p *TrialProvisioner) ProvisionTrial(ctx context.Context, store TrialStore, ownerID uuid.UUID, planName string) (*Subscription, error) {
	plan, err := p.catalog.Find(planName)
	if err != nil {
		p.logger.ErrorContext(ctx, "trial plan is not configured",
			logger.OwnerID(ownerID),
			slog.String("plan", planName),
			logger.Error(err),
		)
		return nil, err
	}

	if _, err := store.GetByOwner(ctx, ownerID); err == nil {
		return nil, ErrSubscriptionAlreadyExists
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}

	now := p.now().UTC()
	trialEndsAt := plan.TrialEndsAt(now)
	sub := &Subscription{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		PlanID:             plan.ID,
		Status:             StatusTrialing,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   trialEndsAt,
		TrialEndsAt:        &trialEndsAt,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	// The unique owner index closes the race between the check above and this insert.
	if err := store.Create(ctx, sub); err != nil {
		if errors.Is(err, ErrSubscriptionAlreadyExists) {
			return nil, ErrSubscriptionAlreadyExists
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	p.logger.InfoContext(ctx, "trial provisioned",
		logger.SubscriptionID(sub.ID),
		logger.OwnerID(ownerID),
		slog.String("plan", plan.ID),
		slog.Time("trial_ends_at", trialEndsAt),
	)
	return sub, nil
}
