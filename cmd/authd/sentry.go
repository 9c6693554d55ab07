package main

import (
	"context"

	"github.com/getsentry/sentry-go"
	auth "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/activitymap"
)

// NewSentrySink records every activity event as a breadcrumb and reports
// failures as messages.
func NewSentrySink() auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		record := activitymap.Map(event)

		level := sentry.LevelInfo
		if record.Outcome == activitymap.OutcomeFailure {
			level = sentry.LevelWarning
		}

		hub := sentry.GetHubFromContext(ctx)
		if hub == nil {
			hub = sentry.CurrentHub()
		}

		hub.AddBreadcrumb(&sentry.Breadcrumb{
			Category:  record.Channel,
			Message:   record.Verb,
			Data:      record.Fields,
			Level:     level,
			Timestamp: record.OccurredAt,
		}, nil)

		if record.Outcome == activitymap.OutcomeFailure {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("actor_id", record.ActorID)
				if record.Reason != "" {
					scope.SetTag("reason", record.Reason)
				}
				scope.SetLevel(level)
				scope.SetContext("activity", sentry.Context{
					"verb":       record.Verb,
					"subject_id": record.SubjectID,
					"fields":     record.Fields,
				})
				hub.CaptureMessage(record.Verb)
			})
		}

		return nil
	})
}
