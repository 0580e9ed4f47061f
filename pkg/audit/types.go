package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Result represents the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure" // rejected by a business rule
	ResultError   Result = "error"
)

// Event is a single audit log entry.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	OwnerID    uuid.UUID      `json:"owner_id"`
	ActorID    uuid.UUID      `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks the fields every stored event needs.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	if e.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: owner is required", ErrEventValidation)
	}
	return nil
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

// WithOwner sets the owner the event belongs to.
func WithOwner(id uuid.UUID) EventOption {
	return func(e *Event) { e.OwnerID = id }
}

// WithResource sets the resource type and ID.
func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithMetadata adds a metadata entry.
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithResult overrides the result set by Log or LogError.
func WithResult(result Result) EventOption {
	return func(e *Event) { e.Result = result }
}

// Criteria filters events. Zero fields match everything.
type Criteria struct {
	OwnerID uuid.UUID
	Action  string
	Since   time.Time
	Limit   int
}

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, events ...Event) error
	Query(ctx context.Context, criteria Criteria) ([]Event, error)
}
