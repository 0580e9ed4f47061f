package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

const subscriptionColumns = `id, owner_id, plan_id, status, provider_customer_id, provider_subscription_id,
	current_period_start, current_period_end, trial_ends_at, paused_at, pause_ends_at,
	cancel_at_period_end, version, created_at, updated_at`

// PGStore persists subscriptions in PostgreSQL.
type PGStore struct {
	db pg.DBTX
}

var (
	_ subscription.Store      = (*PGStore)(nil)
	_ subscription.TrialStore = (*PGStore)(nil)
)

// NewPGStore works on a pool, a connection or a transaction.
func NewPGStore(db pg.DBTX) *PGStore {
	return &PGStore{db: db}
}

// WithTx returns a store bound to tx, e.g. the signup transaction.
func (s *PGStore) WithTx(tx pgx.Tx) *PGStore {
	return &PGStore{db: tx}
}

func (s *PGStore) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*subscription.Subscription, error) {
	return s.scanOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE owner_id = $1`, ownerID)
}

func (s *PGStore) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return s.scanOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
}

func (s *PGStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub.Version == 0 {
		sub.Version = 1
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = sub.CreatedAt

	customerID, subscriptionID := refColumns(sub.BillingRef)
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		sub.ID, sub.OwnerID, sub.PlanID, string(sub.Status), customerID, subscriptionID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialEndsAt, sub.PausedAt, sub.PauseEndsAt,
		sub.CancelAtPeriodEnd, sub.Version, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: owner %s", subscription.ErrSubscriptionAlreadyExists, sub.OwnerID)
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// Update applies patch with a compare-and-set on the version column.
func (s *PGStore) Update(ctx context.Context, id uuid.UUID, patch subscription.Patch, expectedVersion int64) (*subscription.Subscription, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status.Set {
		set("status", string(patch.Status.Value))
	}
	if patch.BillingRef.Set {
		customerID, subscriptionID := refColumns(patch.BillingRef.Value)
		set("provider_customer_id", customerID)
		set("provider_subscription_id", subscriptionID)
	}
	if patch.CurrentPeriodStart.Set {
		set("current_period_start", patch.CurrentPeriodStart.Value)
	}
	if patch.CurrentPeriodEnd.Set {
		set("current_period_end", patch.CurrentPeriodEnd.Value)
	}
	if patch.TrialEndsAt.Set {
		set("trial_ends_at", patch.TrialEndsAt.Value)
	}
	if patch.PausedAt.Set {
		set("paused_at", patch.PausedAt.Value)
	}
	if patch.PauseEndsAt.Set {
		set("pause_ends_at", patch.PauseEndsAt.Value)
	}
	if patch.CancelAtPeriodEnd.Set {
		set("cancel_at_period_end", patch.CancelAtPeriodEnd.Value)
	}
	sets = append(sets, "version = version + 1", "updated_at = now()")

	args = append(args, id, expectedVersion)
	query := fmt.Sprintf(`UPDATE subscriptions SET %s WHERE id = $%d AND version = $%d RETURNING `+subscriptionColumns,
		strings.Join(sets, ", "), len(args)-1, len(args))

	updated, err := s.scanOne(ctx, query, args...)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		// Either the row is gone or someone else bumped the version.
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, subscription.ErrVersionConflict
	}
	return updated, err
}

func (s *PGStore) ListExpiredPauses(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]*subscription.Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE paused_at IS NOT NULL AND pause_ends_at <= $1 AND id > $2
		ORDER BY id
		LIMIT $3`, now, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired pauses: %w", err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

func (s *PGStore) scanOne(ctx context.Context, query string, args ...any) (*subscription.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	return sub, nil
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		sub            subscription.Subscription
		status         string
		customerID     *string
		subscriptionID *string
	)
	err := row.Scan(
		&sub.ID, &sub.OwnerID, &sub.PlanID, &status, &customerID, &subscriptionID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.TrialEndsAt, &sub.PausedAt, &sub.PauseEndsAt,
		&sub.CancelAtPeriodEnd, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Status = subscription.Status(status)
	if subscriptionID != nil {
		sub.BillingRef = &subscription.BillingRef{SubscriptionID: *subscriptionID}
		if customerID != nil {
			sub.BillingRef.CustomerID = *customerID
		}
	}
	normalizeUTC(&sub)
	return &sub, nil
}

func refColumns(ref *subscription.BillingRef) (customerID, subscriptionID *string) {
	if ref == nil {
		return nil, nil
	}
	if ref.CustomerID != "" {
		customerID = &ref.CustomerID
	}
	if ref.SubscriptionID != "" {
		subscriptionID = &ref.SubscriptionID
	}
	return customerID, subscriptionID
}

func normalizeUTC(s *subscription.Subscription) {
	s.CurrentPeriodStart = s.CurrentPeriodStart.UTC()
	s.CurrentPeriodEnd = s.CurrentPeriodEnd.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	for _, t := range []*time.Time{s.TrialEndsAt, s.PausedAt, s.PauseEndsAt} {
		if t != nil {
			*t = t.UTC()
		}
	}
}
