package tracking

import (
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/shared"
)

// EventSource identifies which producer path reported an event
type EventSource string

const (
	EventSourceJS      EventSource = "js"
	EventSourceWebhook EventSource = "server_webhook"
	EventSourceImport  EventSource = "import"
)

// IsValid returns true if the source tag is known
func (s EventSource) IsValid() bool {
	switch s {
	case EventSourceJS, EventSourceWebhook, EventSourceImport:
		return true
	default:
		return false
	}
}

// Event is an immutable behavioral fact. Exactly one row exists per unique
// dedupe key within a workspace; repeats only increment DupeCount on the
// stored row. UnifiedUserID is set during identity resolution and may be
// cleared on profile deletion while the event itself survives for audit.
type Event struct {
	shared.WorkspaceAggregateRoot
	Source        EventSource
	Name          string
	Properties    map[string]interface{}
	Context       map[string]interface{}
	EventTime     time.Time
	DedupeKey     string
	DupeCount     int
	UnifiedUserID *uuid.UUID
}

// NewEvent creates an admitted-candidate event with its fingerprint computed
func NewEvent(workspaceID uuid.UUID, source EventSource, name string, properties, context map[string]interface{}, eventTime time.Time, idempotencyToken string) (*Event, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_EVENT_NAME", "Event name cannot be empty")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Unknown event source")
	}
	if eventTime.IsZero() {
		return nil, shared.NewDomainError("INVALID_EVENT_TIME", "Event time is required")
	}
	if properties == nil {
		properties = map[string]interface{}{}
	}
	if context == nil {
		context = map[string]interface{}{}
	}

	e := &Event{
		WorkspaceAggregateRoot: shared.NewWorkspaceAggregateRoot(workspaceID),
		Source:                 source,
		Name:                   name,
		Properties:             properties,
		Context:                context,
		EventTime:              eventTime,
	}
	e.DedupeKey = Fingerprint(FingerprintInput{
		WorkspaceID:      workspaceID,
		Source:           source,
		Name:             name,
		IdempotencyToken: idempotencyToken,
		Properties:       properties,
		EventTime:        eventTime,
	})
	return e, nil
}

// AttachUser links the event to its resolved unified user
func (e *Event) AttachUser(userID uuid.UUID) {
	e.UnifiedUserID = &userID
	e.UpdatedAt = time.Now()
}

// StringProperty returns a property as a string, "" when absent
func (e *Event) StringProperty(key string) string {
	return stringValue(e.Properties[key])
}

// StringContext returns a context field as a string, "" when absent
func (e *Event) StringContext(key string) string {
	return stringValue(e.Context[key])
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}
