package navgate

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRedirect        ActivityEventType = "navigation.redirect"
	ActivityEventHydrateSuccess  ActivityEventType = "session.hydrate.success"
	ActivityEventHydrateFailure  ActivityEventType = "session.hydrate.error"
	ActivityEventSessionSet      ActivityEventType = "session.set"
	ActivityEventSessionCleared  ActivityEventType = "session.clear"
	ActivityEventProfileComplete ActivityEventType = "profile.complete.success"
	ActivityEventProfileFailure  ActivityEventType = "profile.complete.error"
	ActivityEventUpstreamFailure ActivityEventType = "passthrough.error"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Identity   string
	Zone       string
	Target     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
