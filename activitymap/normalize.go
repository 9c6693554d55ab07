package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-session"
)

// Outcome tells audit transports whether the recorded action went through.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

const systemActor = "system"

// DefaultRedactedKeys are metadata keys masked by Map.
var DefaultRedactedKeys = []string{"email"}

// Record is the flattened form of an auth.ActivityEvent handed to audit
// transports (Sentry breadcrumbs, log lines).
type Record struct {
	Verb       string         `json:"verb"`
	Channel    string         `json:"channel"`
	ActorID    string         `json:"actor_id"`
	ActorType  string         `json:"actor_type,omitempty"`
	SubjectID  string         `json:"subject_id,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Mapper flattens activity events. The zero value redacts nothing and
// stamps missing timestamps with time.Now.
type Mapper struct {
	Redact []string
	Now    func() time.Time
}

// Map flattens event with DefaultRedactedKeys masked.
func Map(event auth.ActivityEvent) Record {
	return Mapper{Redact: DefaultRedactedKeys}.Map(event)
}

// Map flattens event into a Record.
func (m Mapper) Map(event auth.ActivityEvent) Record {
	verb := string(event.EventType)

	record := Record{
		Verb:       verb,
		Channel:    channelOf(verb),
		ActorID:    firstNonEmpty(event.Actor.ID, event.UserID, systemActor),
		ActorType:  strings.TrimSpace(event.Actor.Type),
		SubjectID:  strings.TrimSpace(event.UserID),
		Outcome:    OutcomeSuccess,
		Reason:     strings.TrimSpace(event.Reason),
		Fields:     m.fields(event.Metadata),
		OccurredAt: event.OccurredAt,
	}

	if event.IsFailure() {
		record.Outcome = OutcomeFailure
	}

	if record.OccurredAt.IsZero() {
		now := time.Now
		if m.Now != nil {
			now = m.Now
		}
		record.OccurredAt = now().UTC()
	}

	return record
}

func (m Mapper) fields(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}

	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		out[key] = value
	}

	for _, key := range m.Redact {
		value, ok := out[key]
		if !ok {
			continue
		}
		if s, ok := value.(string); ok {
			out[key] = mask(s)
		} else {
			out[key] = "***"
		}
	}

	return out
}

// channelOf returns the verb namespace, "auth.logout" -> "auth".
func channelOf(verb string) string {
	if i := strings.IndexByte(verb, '.'); i > 0 {
		return verb[:i]
	}
	if verb == "" {
		return "auth"
	}
	return verb
}

// mask keeps the first character and, for emails, the domain:
// "pepe@example.com" -> "p***@example.com".
func mask(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	local, domain, isEmail := strings.Cut(value, "@")
	if !isEmail {
		return value[:1] + "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}
