package billing

import (
	"context"
	"net/mail"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// Onboarder starts the billing side of a new owner.
type Onboarder interface {
	Onboard(ctx context.Context, ownerID uuid.UUID, planName, billingEmail string) (*subscription.Subscription, error)
}

// PGOnboarding provisions the trial and the billing contact in one transaction,
// so a failed signup leaves neither behind.
type PGOnboarding struct {
	db          pg.TxBeginner
	provisioner *subscription.TrialProvisioner
	defaultPlan string
}

var _ Onboarder = (*PGOnboarding)(nil)

// NewPGOnboarding uses defaultPlan when Onboard gets no plan name.
func NewPGOnboarding(db pg.TxBeginner, provisioner *subscription.TrialProvisioner, defaultPlan string) *PGOnboarding {
	if db == nil || provisioner == nil {
		panic("billing: database and TrialProvisioner are required")
	}
	return &PGOnboarding{db: db, provisioner: provisioner, defaultPlan: defaultPlan}
}

func (o *PGOnboarding) Onboard(ctx context.Context, ownerID uuid.UUID, planName, billingEmail string) (*subscription.Subscription, error) {
	if planName == "" {
		planName = o.defaultPlan
	}
	if billingEmail != "" {
		if _, err := mail.ParseAddress(billingEmail); err != nil {
			return nil, errBadRequest
		}
	}

	var sub *subscription.Subscription
	err := pg.WithTx(ctx, o.db, func(tx pgx.Tx) error {
		store := NewPGStore(tx)

		var err error
		if sub, err = o.provisioner.ProvisionTrial(ctx, store, ownerID, planName); err != nil {
			return err
		}
		if billingEmail != "" {
			return store.SetBillingEmail(ctx, ownerID, billingEmail)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
