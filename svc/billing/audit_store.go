package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingkit/pkg/audit"
	"github.com/dmitrymomot/billingkit/pkg/pg"
)

const auditColumns = `id, owner_id, actor_id, action, resource, resource_id, result, error, request_id, metadata, created_at`

// PGAuditStorage keeps audit events in the audit_events table.
type PGAuditStorage struct {
	db pg.DBTX
}

var _ audit.Storage = (*PGAuditStorage)(nil)

func NewPGAuditStorage(db pg.DBTX) *PGAuditStorage {
	return &PGAuditStorage{db: db}
}

func (s *PGAuditStorage) Store(ctx context.Context, events ...audit.Event) error {
	for _, e := range events {
		var actorID *uuid.UUID
		if e.ActorID != uuid.Nil {
			actorID = &e.ActorID
		}
		_, err := s.db.Exec(ctx, `INSERT INTO audit_events (`+auditColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			e.ID, e.OwnerID, actorID, e.Action, e.Resource, e.ResourceID,
			string(e.Result), e.Error, e.RequestID, e.Metadata, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", audit.ErrStorageNotAvailable, err)
		}
	}
	return nil
}

func (s *PGAuditStorage) Query(ctx context.Context, c audit.Criteria) ([]audit.Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if c.OwnerID != uuid.Nil {
		add("owner_id = $%d", c.OwnerID)
	}
	if c.Action != "" {
		add("action = $%d", c.Action)
	}
	if !c.Since.IsZero() {
		add("created_at >= $%d", c.Since)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if c.Limit > 0 {
		args = append(args, c.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", audit.ErrStorageNotAvailable, err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Event, error) {
		var (
			e       audit.Event
			actorID *uuid.UUID
			result  string
		)
		err := row.Scan(&e.ID, &e.OwnerID, &actorID, &e.Action, &e.Resource, &e.ResourceID,
			&result, &e.Error, &e.RequestID, &e.Metadata, &e.CreatedAt)
		if actorID != nil {
			e.ActorID = *actorID
		}
		e.Result = audit.Result(result)
		e.CreatedAt = e.CreatedAt.UTC()
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit events: %w", err)
	}
	return events, nil
}
