package billing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/audit"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryReader lists the audit trail of an owner's subscription.
type HistoryReader interface {
	History(ctx context.Context, actorID, ownerID uuid.UUID, limit int) ([]audit.Event, error)
}

// AuditedService records every lifecycle mutation in the audit log.
// Reads pass through untouched.
type AuditedService struct {
	subscription.Service
	roles  subscription.RoleChecker
	audit  *audit.Logger
	logger *slog.Logger
}

var (
	_ subscription.Service = (*AuditedService)(nil)
	_ HistoryReader        = (*AuditedService)(nil)
)

// NewAuditedService panics if any collaborator is nil.
func NewAuditedService(svc subscription.Service, roles subscription.RoleChecker, auditLog *audit.Logger, log *slog.Logger) *AuditedService {
	if svc == nil || roles == nil || auditLog == nil {
		panic("billing: service, role checker and audit logger are required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &AuditedService{
		Service: svc,
		roles:   roles,
		audit:   auditLog,
		logger:  log.With(logger.Component("billing_audit")),
	}
}

func (s *AuditedService) Pause(ctx context.Context, actorID, ownerID uuid.UUID, months int) (*subscription.Subscription, error) {
	sub, err := s.Service.Pause(ctx, actorID, ownerID, months)
	s.record(ctx, "subscription.pause", ownerID, sub, err, audit.WithMetadata("months", months))
	return sub, err
}

func (s *AuditedService) Resume(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := s.Service.Resume(ctx, actorID, ownerID)
	s.record(ctx, "subscription.resume", ownerID, sub, err)
	return sub, err
}

func (s *AuditedService) Cancel(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := s.Service.Cancel(ctx, actorID, ownerID)
	s.record(ctx, "subscription.cancel", ownerID, sub, err)
	return sub, err
}

func (s *AuditedService) UndoCancel(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := s.Service.UndoCancel(ctx, actorID, ownerID)
	s.record(ctx, "subscription.undo_cancel", ownerID, sub, err)
	return sub, err
}

func (s *AuditedService) Refresh(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := s.Service.Refresh(ctx, actorID, ownerID)
	s.record(ctx, "subscription.refresh", ownerID, sub, err)
	return sub, err
}

// History returns the newest events first. Only owners may read it.
func (s *AuditedService) History(ctx context.Context, actorID, ownerID uuid.UUID, limit int) ([]audit.Event, error) {
	ok, err := s.roles.HasRole(ctx, actorID, ownerID, subscription.RoleOwner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, subscription.ErrForbidden
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.audit.Find(ctx, audit.Criteria{OwnerID: ownerID, Limit: min(limit, maxHistoryLimit)})
}

func (s *AuditedService) record(ctx context.Context, action string, ownerID uuid.UUID, sub *subscription.Subscription, opErr error, opts ...audit.EventOption) {
	opts = append(opts, audit.WithOwner(ownerID))
	if sub != nil {
		opts = append(opts,
			audit.WithResource("subscription", sub.ID.String()),
			audit.WithMetadata("version", sub.Version),
			audit.WithMetadata("status", sub.Status.String()),
		)
	}

	var err error
	switch {
	case opErr == nil:
		err = s.audit.Log(ctx, action, opts...)
	case subscription.IsPrecondition(opErr), errors.Is(opErr, subscription.ErrForbidden):
		err = s.audit.LogError(ctx, action, opErr, append(opts, audit.WithResult(audit.ResultFailure))...)
	default:
		err = s.audit.LogError(ctx, action, opErr, opts...)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record audit event",
			logger.OwnerID(ownerID),
			slog.String("action", action),
			logger.Error(err),
		)
	}
}
