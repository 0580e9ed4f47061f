package subscription

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type actorIDCtxKey struct{}

// WithActorID stores the authenticated user performing a request.
func WithActorID(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorIDCtxKey{}, actorID)
}

// ActorIDFromContext returns the authenticated user stored by WithActorID.
func ActorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actorIDCtxKey{}).(uuid.UUID)
	return id, ok
}

// ActorIDExtractor adds the actor id to log records.
// It matches the logger.ContextExtractor signature.
func ActorIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := ActorIDFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.String("actor_id", id.String()), true
}
