package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

// SyncJobModel is the persistence model for the outbound job queue. The
// partial ordering index on (status, next_attempt_at, created_at) backs the
// skip-locked claim query.
type SyncJobModel struct {
	WorkspaceAggregateModel
	Type          string     `gorm:"type:varchar(20);not null;index:idx_jobs_supersede,priority:1"`
	DestinationID uuid.UUID  `gorm:"type:uuid;not null;index;index:idx_jobs_supersede,priority:2"`
	UnifiedUserID uuid.UUID  `gorm:"type:uuid;not null;index:idx_jobs_supersede,priority:3"`
	EventID       *uuid.UUID `gorm:"type:uuid"`
	Payload       []byte     `gorm:"type:jsonb"`
	Status        string     `gorm:"type:varchar(20);not null;index:idx_jobs_claim,priority:1;index:idx_jobs_supersede,priority:4"`
	Outcome       string     `gorm:"type:varchar(20)"`
	Attempts      int        `gorm:"not null;default:0"`
	MaxAttempts   int        `gorm:"not null;default:5"`
	LastError     string     `gorm:"type:text"`
	ClaimedBy     string     `gorm:"type:varchar(100)"`
	LeaseExpires  *time.Time `gorm:"index"`
	NextAttemptAt *time.Time `gorm:"index:idx_jobs_claim,priority:2"`
	CompletedAt   *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (SyncJobModel) TableName() string {
	return "sync_jobs"
}

// ToDomain converts the persistence model to a domain SyncJob
func (m *SyncJobModel) ToDomain() *syncjob.SyncJob {
	j := &syncjob.SyncJob{
		Type:          syncjob.JobType(m.Type),
		DestinationID: m.DestinationID,
		UnifiedUserID: m.UnifiedUserID,
		EventID:       m.EventID,
		Payload:       m.Payload,
		Status:        syncjob.JobStatus(m.Status),
		Outcome:       syncjob.JobOutcome(m.Outcome),
		Attempts:      m.Attempts,
		MaxAttempts:   m.MaxAttempts,
		LastError:     m.LastError,
		ClaimedBy:     m.ClaimedBy,
		LeaseExpires:  m.LeaseExpires,
		NextAttemptAt: m.NextAttemptAt,
		CompletedAt:   m.CompletedAt,
	}
	m.PopulateWorkspaceAggregateRoot(&j.WorkspaceAggregateRoot)
	return j
}

// FromDomain populates the persistence model from a domain SyncJob
func (m *SyncJobModel) FromDomain(j *syncjob.SyncJob) {
	m.FromDomainWorkspaceAggregateRoot(j.WorkspaceAggregateRoot)
	m.Type = string(j.Type)
	m.DestinationID = j.DestinationID
	m.UnifiedUserID = j.UnifiedUserID
	m.EventID = j.EventID
	m.Payload = j.Payload
	m.Status = string(j.Status)
	m.Outcome = string(j.Outcome)
	m.Attempts = j.Attempts
	m.MaxAttempts = j.MaxAttempts
	m.LastError = j.LastError
	m.ClaimedBy = j.ClaimedBy
	m.LeaseExpires = j.LeaseExpires
	m.NextAttemptAt = j.NextAttemptAt
	m.CompletedAt = j.CompletedAt
}

// DestinationModel is the persistence model for configured destinations
type DestinationModel struct {
	WorkspaceAggregateModel
	Type              string     `gorm:"type:varchar(20);not null"`
	Name              string     `gorm:"type:varchar(200);not null"`
	ConfigJSON        string     `gorm:"column:config;type:jsonb;default:'{}'"`
	EventMappingJSON  string     `gorm:"column:event_mapping;type:jsonb;default:'{}'"`
	BlockedEventsJSON string     `gorm:"column:blocked_events;type:jsonb;default:'[]'"`
	// No default tag: GORM skips zero-valued fields that carry one, which
	// would silently store a disabled row as enabled
	Enabled           bool       `gorm:"not null;index"`
	LastSyncAt        *time.Time
	LastError         string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (DestinationModel) TableName() string {
	return "destinations"
}

// ToDomain converts the persistence model to a domain Destination
func (m *DestinationModel) ToDomain() *syncjob.Destination {
	d := &syncjob.Destination{
		Type:          syncjob.DestinationType(m.Type),
		Name:          m.Name,
		Config:        decodeStringMap(m.ConfigJSON),
		EventMapping:  decodeStringMap(m.EventMappingJSON),
		BlockedEvents: decodeJSONSlice[string](m.BlockedEventsJSON),
		Enabled:       m.Enabled,
		LastSyncAt:    m.LastSyncAt,
		LastError:     m.LastError,
	}
	m.PopulateWorkspaceAggregateRoot(&d.WorkspaceAggregateRoot)
	return d
}

// FromDomain populates the persistence model from a domain Destination
func (m *DestinationModel) FromDomain(d *syncjob.Destination) {
	m.FromDomainWorkspaceAggregateRoot(d.WorkspaceAggregateRoot)
	m.Type = string(d.Type)
	m.Name = d.Name
	m.ConfigJSON = encodeStringMap(d.Config)
	m.EventMappingJSON = encodeStringMap(d.EventMapping)
	m.BlockedEventsJSON = encodeJSONSlice(d.BlockedEvents)
	m.Enabled = d.Enabled
	m.LastSyncAt = d.LastSyncAt
	m.LastError = d.LastError
}
