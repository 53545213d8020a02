package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/tracking"
)

// EventModel is the persistence model for admitted events. The dedupe key
// carries a unique index per workspace; the admit path relies on it for the
// atomic insert-or-increment.
type EventModel struct {
	WorkspaceAggregateModel
	Source         string     `gorm:"type:varchar(20);not null"`
	Name           string     `gorm:"type:varchar(255);not null;index"`
	PropertiesJSON string     `gorm:"column:properties;type:jsonb;default:'{}'"`
	ContextJSON    string     `gorm:"column:context;type:jsonb;default:'{}'"`
	EventTime      time.Time  `gorm:"not null;index:idx_events_user_time,priority:2"`
	// The fingerprint hashes the workspace id, so a global unique index
	// still scopes dedupe per workspace
	DedupeKey     string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	DupeCount     int        `gorm:"not null;default:0"`
	UnifiedUserID *uuid.UUID `gorm:"type:uuid;index:idx_events_user_time,priority:1"`
}

// TableName returns the table name for GORM
func (EventModel) TableName() string {
	return "events"
}

// ToDomain converts the persistence model to a domain Event
func (m *EventModel) ToDomain() *tracking.Event {
	e := &tracking.Event{
		Source:        tracking.EventSource(m.Source),
		Name:          m.Name,
		EventTime:     m.EventTime,
		DedupeKey:     m.DedupeKey,
		DupeCount:     m.DupeCount,
		UnifiedUserID: m.UnifiedUserID,
	}
	m.PopulateWorkspaceAggregateRoot(&e.WorkspaceAggregateRoot)
	e.Properties = decodeJSONMap(m.PropertiesJSON)
	e.Context = decodeJSONMap(m.ContextJSON)
	return e
}

// FromDomain populates the persistence model from a domain Event
func (m *EventModel) FromDomain(e *tracking.Event) {
	m.FromDomainWorkspaceAggregateRoot(e.WorkspaceAggregateRoot)
	m.Source = string(e.Source)
	m.Name = e.Name
	m.EventTime = e.EventTime
	m.DedupeKey = e.DedupeKey
	m.DupeCount = e.DupeCount
	m.UnifiedUserID = e.UnifiedUserID
	m.PropertiesJSON = encodeJSONMap(e.Properties)
	m.ContextJSON = encodeJSONMap(e.Context)
}

func encodeJSONMap(in map[string]interface{}) string {
	if len(in) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func decodeJSONMap(raw string) map[string]interface{} {
	out := map[string]interface{}{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func encodeJSONSlice[T any](in []T) string {
	if len(in) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeJSONSlice[T any](raw string) []T {
	var out []T
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
