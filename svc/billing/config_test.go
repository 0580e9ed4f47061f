package billing_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/scheduler"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
	"github.com/dmitrymomot/billingkit/svc/billing"
)

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	t.Run("built-in plans", func(t *testing.T) {
		t.Parallel()
		catalog, err := billing.LoadCatalog(context.Background(), billing.Config{})
		require.NoError(t, err)
		assert.Equal(t, len(billing.DefaultPlans()), catalog.Len())

		plan, err := catalog.Find("starter")
		require.NoError(t, err)
		assert.Equal(t, subscription.DefaultTrialDays, plan.TrialLength())
	})

	t.Run("plans file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`plans:
  - id: price_team
    name: Team
    trial_days: 30
    price: {amount: 4900, currency: USD}
    interval: monthly
`), 0o600))

		catalog, err := billing.LoadCatalog(context.Background(), billing.Config{PlansFile: path})
		require.NoError(t, err)

		plan, err := catalog.Find("team")
		require.NoError(t, err)
		assert.Equal(t, "price_team", plan.ID)
		assert.Equal(t, 30, plan.TrialLength())
	})

	t.Run("missing plans file", func(t *testing.T) {
		t.Parallel()
		_, err := billing.LoadCatalog(context.Background(), billing.Config{PlansFile: "/nonexistent/plans.yaml"})
		assert.ErrorIs(t, err, subscription.ErrFailedToLoadPlans)
	})
}

func TestConfig_Options(t *testing.T) {
	t.Parallel()

	cfg := billing.Config{
		GatewayTimeout: 5 * time.Second,
		LockTTL:        time.Minute,
		Reconciler:     billing.ReconcilerConfig{Concurrency: 2, BatchSize: 10, RatePerSecond: 1},
	}
	assert.Len(t, cfg.ServiceOptions(), 3)
	assert.Len(t, cfg.ReconcilerOptions(), 5)
}

func TestReconcilerConfig_Schedule(t *testing.T) {
	t.Parallel()
	from := time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)

	daily, err := billing.ReconcilerConfig{ScheduleHour: 3}.Schedule()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 11, 3, 0, 0, 0, time.UTC), daily.Next(from))

	every6h, err := billing.ReconcilerConfig{ScheduleHour: 3, Cron: "0 */6 * * *"}.Schedule()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC), every6h.Next(from).UTC())

	_, err = billing.ReconcilerConfig{Cron: "every day"}.Schedule()
	assert.ErrorIs(t, err, scheduler.ErrInvalidSchedule)
}
