package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess           ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure           ActivityEventType = "auth.login.failure"
	ActivityEventLogout                 ActivityEventType = "auth.logout"
	ActivityEventSessionSuperseded      ActivityEventType = "auth.session.superseded"
	ActivityEventUserRegistered         ActivityEventType = "user.registered"
	ActivityEventEmailVerified          ActivityEventType = "user.email.verified"
	ActivityEventPasswordResetRequested ActivityEventType = "auth.password.reset.requested"
	ActivityEventPasswordResetSuccess   ActivityEventType = "auth.password.reset"
	ActivityEventCredentialsUpdated     ActivityEventType = "auth.credentials.updated"
)

// ActorRef identifies who triggered an event
type ActorRef struct {
	ID   string
	Type string
}

const (
	ActorTypeUser   = "user"
	ActorTypeAdmin  = "admin"
	ActorTypeSystem = "system"
)

// ActorFromClaim builds the actor for an authenticated caller
func ActorFromClaim(claim *IdentityClaim) ActorRef {
	if claim == nil {
		return ActorRef{Type: ActorTypeSystem}
	}
	if claim.IsAdmin {
		return ActorRef{ID: claim.ID, Type: ActorTypeAdmin}
	}
	return ActorRef{ID: claim.ID, Type: ActorTypeUser}
}

// ActivityEvent captures audit-friendly information about an action.
// Reason holds the error text code for failure events.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Reason     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// IsFailure reports whether the event records a rejected action
func (e ActivityEvent) IsFailure() bool {
	return e.EventType == ActivityEventLoginFailure || e.Reason != ""
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

// recordActivity is best effort, sink errors are logged and dropped
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink failed to record %s: %v", event.EventType, err)
	}
}
