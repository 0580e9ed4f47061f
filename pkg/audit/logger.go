package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger writes audit events to a Storage.
type Logger struct {
	storage            Storage
	actorExtractor     func(context.Context) (uuid.UUID, bool)
	requestIDExtractor func(context.Context) (string, bool)
	now                func() time.Time
}

type Option func(*Logger)

// WithActorExtractor reads the acting user from the context.
func WithActorExtractor(fn func(context.Context) (uuid.UUID, bool)) Option {
	return func(l *Logger) { l.actorExtractor = fn }
}

// WithRequestIDExtractor reads the request id from the context.
func WithRequestIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) { l.requestIDExtractor = fn }
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates a new audit logger.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	l := &Logger{
		storage: storage,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action.
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := l.newEvent(ctx, action, ResultSuccess)
	for _, opt := range opts {
		opt(&event)
	}
	return l.store(ctx, event)
}

// LogError records a failed action.
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	event := l.newEvent(ctx, action, ResultError)
	if err != nil {
		event.Error = err.Error()
	}
	for _, opt := range opts {
		opt(&event)
	}
	return l.store(ctx, event)
}

// Find returns events matching criteria, newest first.
func (l *Logger) Find(ctx context.Context, criteria Criteria) ([]Event, error) {
	return l.storage.Query(ctx, criteria)
}

func (l *Logger) newEvent(ctx context.Context, action string, result Result) Event {
	event := Event{
		ID:        uuid.New(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now(),
	}
	if l.actorExtractor != nil {
		if id, ok := l.actorExtractor(ctx); ok {
			event.ActorID = id
		}
	}
	if l.requestIDExtractor != nil {
		if id, ok := l.requestIDExtractor(ctx); ok {
			event.RequestID = id
		}
	}
	return event
}

func (l *Logger) store(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}
