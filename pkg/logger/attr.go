package logger

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// OwnerID records the subscription owner under "owner_id".
func OwnerID(id uuid.UUID) slog.Attr {
	return uuidAttr("owner_id", id)
}

// SubscriptionID records the local subscription id under "subscription_id".
func SubscriptionID(id uuid.UUID) slog.Attr {
	return uuidAttr("subscription_id", id)
}

// ActorID records the user performing an operation under "actor_id".
func ActorID(id uuid.UUID) slog.Attr {
	return uuidAttr("actor_id", id)
}

func uuidAttr(key string, id uuid.UUID) slog.Attr {
	if id == uuid.Nil {
		return slog.Attr{}
	}
	return slog.String(key, id.String())
}

// Transition records a lifecycle transition name.
func Transition(name string) slog.Attr {
	return slog.String("transition", name)
}

// GatewayCall records a billing provider call name.
func GatewayCall(name string) slog.Attr {
	return slog.String("gateway_call", name)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Count records a counter value.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
