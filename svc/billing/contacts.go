package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

var _ RecipientResolver = (*PGStore)(nil)

// SetBillingEmail stores or replaces the owner's billing contact.
func (s *PGStore) SetBillingEmail(ctx context.Context, ownerID uuid.UUID, email string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO billing_contacts (owner_id, email) VALUES ($1, $2)
		ON CONFLICT (owner_id) DO UPDATE SET email = EXCLUDED.email, updated_at = now()`,
		ownerID, email)
	if err != nil {
		return fmt.Errorf("save billing contact: %w", err)
	}
	return nil
}

// BillingEmail returns ErrNoRecipient when no contact is stored.
func (s *PGStore) BillingEmail(ctx context.Context, ownerID uuid.UUID) (string, error) {
	var email string
	err := s.db.QueryRow(ctx, `SELECT email FROM billing_contacts WHERE owner_id = $1`, ownerID).Scan(&email)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return "", ErrNoRecipient
		}
		return "", fmt.Errorf("load billing contact: %w", err)
	}
	return email, nil
}
