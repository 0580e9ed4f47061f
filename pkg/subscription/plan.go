package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Plan describes a subscription plan.
// The ID field should be set to the payment provider's price ID for paid plans.
type Plan struct {
	ID          string          `yaml:"id"` // provider's price ID (e.g., price_starter_monthly)
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Public      bool            `yaml:"public"` // available for self-service signup
	TrialDays   int             `yaml:"trial_days"`
	Price       Money           `yaml:"price"`
	Interval    BillingInterval `yaml:"interval"`
}

// TrialLength returns the trial duration in days, falling back to DefaultTrialDays.
func (p Plan) TrialLength() int {
	if p.TrialDays > 0 {
		return p.TrialDays
	}
	return DefaultTrialDays
}

// TrialEndsAt calculates when the trial period started at startedAt ends.
func (p Plan) TrialEndsAt(startedAt time.Time) time.Time {
	return startedAt.AddDate(0, 0, p.TrialLength()).UTC()
}

// PlansListSource defines how plans are loaded.
type PlansListSource interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// Catalog is an immutable set of plans keyed by ID.
type Catalog struct {
	plans map[string]Plan
}

// NewCatalog loads and validates plans from src.
func NewCatalog(ctx context.Context, src PlansListSource) (*Catalog, error) {
	if src == nil {
		panic("subscription: PlansListSource is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	return &Catalog{plans: plans}, nil
}

// Find looks a plan up by ID, then by case-insensitive name.
func (c *Catalog) Find(name string) (Plan, error) {
	if p, ok := c.plans[name]; ok {
		return p, nil
	}
	for _, p := range c.plans {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, name)
}

// Len returns the number of plans in the catalog.
func (c *Catalog) Len() int {
	return len(c.plans)
}

func validatePlans(plans map[string]Plan) error {
	if len(plans) == 0 {
		return fmt.Errorf("%w: no plans defined", ErrInvalidPlanConfiguration)
	}
	for id, p := range plans {
		if id == "" || p.ID != id {
			return fmt.Errorf("%w: plan key %q does not match id %q", ErrInvalidPlanConfiguration, id, p.ID)
		}
		if p.Name == "" {
			return fmt.Errorf("%w: plan %q has no name", ErrInvalidPlanConfiguration, id)
		}
		if p.TrialDays < 0 {
			return fmt.Errorf("%w: plan %q has negative trial days", ErrInvalidPlanConfiguration, id)
		}
		if p.Price.Amount < 0 {
			return fmt.Errorf("%w: plan %q has negative price", ErrInvalidPlanConfiguration, id)
		}
	}
	return nil
}
