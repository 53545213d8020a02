package syncjob

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/shared"
)

// DestinationType identifies the downstream platform family
type DestinationType string

const (
	DestinationKlaviyo DestinationType = "klaviyo"
	DestinationWebhook DestinationType = "webhook"
	DestinationGA4     DestinationType = "ga4"
	DestinationMeta    DestinationType = "meta"
)

func (t DestinationType) IsValid() bool {
	switch t {
	case DestinationKlaviyo, DestinationWebhook, DestinationGA4, DestinationMeta:
		return true
	}
	return false
}

// Destination is a configured outbound target. Config holds type-specific
// credentials and endpoints; EventMapping renames internal event names on
// the wire; BlockedEvents holds glob patterns evaluated at enqueue time.
type Destination struct {
	shared.WorkspaceAggregateRoot
	Type          DestinationType
	Name          string
	Config        map[string]string
	EventMapping  map[string]string
	BlockedEvents []string
	Enabled       bool
	LastSyncAt    *time.Time
	LastError     string
}

// NewDestination creates an enabled destination
func NewDestination(workspaceID uuid.UUID, typ DestinationType, name string, config map[string]string) (*Destination, error) {
	if !typ.IsValid() {
		return nil, shared.NewDomainError("INVALID_DESTINATION_TYPE", "unknown destination type: "+string(typ))
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_DESTINATION_NAME", "destination name is required")
	}
	if config == nil {
		config = map[string]string{}
	}
	return &Destination{
		WorkspaceAggregateRoot: shared.NewWorkspaceAggregateRoot(workspaceID),
		Type:                   typ,
		Name:                   name,
		Config:                 config,
		EventMapping:           map[string]string{},
		Enabled:                true,
	}, nil
}

// IsBlockedEvent reports whether an event name matches any blocked pattern.
// Patterns use shell glob syntax ("internal_*", "debug_?"). A pattern that
// fails to compile matches nothing.
func (d *Destination) IsBlockedEvent(eventName string) bool {
	for _, pattern := range d.BlockedEvents {
		if ok, err := path.Match(pattern, eventName); err == nil && ok {
			return true
		}
	}
	return false
}

// MapEventName translates an internal event name to the destination's wire
// name, falling back to the internal name when unmapped
func (d *Destination) MapEventName(eventName string) string {
	if mapped, ok := d.EventMapping[eventName]; ok && mapped != "" {
		return mapped
	}
	return eventName
}

// Enable re-activates the destination and clears the sticky error
func (d *Destination) Enable(now time.Time) {
	d.Enabled = true
	d.LastError = ""
	d.UpdatedAt = now
}

// Disable stops new claims against this destination. In-flight jobs finish;
// pending ones wait until re-enable.
func (d *Destination) Disable(now time.Time) {
	d.Enabled = false
	d.UpdatedAt = now
}

// RecordSync stamps a successful delivery
func (d *Destination) RecordSync(now time.Time) {
	d.LastSyncAt = &now
	d.LastError = ""
	d.UpdatedAt = now
}

// RecordError keeps the latest delivery error for operator visibility
func (d *Destination) RecordError(msg string, now time.Time) {
	d.LastError = msg
	d.UpdatedAt = now
}
