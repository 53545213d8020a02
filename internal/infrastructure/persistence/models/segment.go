package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/segment"
)

// SegmentModel is the persistence model for segment definitions
type SegmentModel struct {
	WorkspaceAggregateModel
	Key       string `gorm:"type:varchar(100);not null;index"`
	Name      string `gorm:"type:varchar(200);not null"`
	RulesJSON string `gorm:"column:rules;type:jsonb;default:'[]'"`
	// No default tag: GORM skips zero-valued fields that carry one, which
	// would silently store a disabled row as enabled
	Enabled   bool   `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SegmentModel) TableName() string {
	return "segments"
}

// ToDomain converts the persistence model to a domain Segment
func (m *SegmentModel) ToDomain() *segment.Segment {
	s := &segment.Segment{
		Key:     m.Key,
		Name:    m.Name,
		Rules:   decodeJSONSlice[segment.Rule](m.RulesJSON),
		Enabled: m.Enabled,
	}
	m.PopulateWorkspaceAggregateRoot(&s.WorkspaceAggregateRoot)
	return s
}

// FromDomain populates the persistence model from a domain Segment
func (m *SegmentModel) FromDomain(s *segment.Segment) {
	m.FromDomainWorkspaceAggregateRoot(s.WorkspaceAggregateRoot)
	m.Key = s.Key
	m.Name = s.Name
	m.RulesJSON = encodeJSONSlice(s.Rules)
	m.Enabled = s.Enabled
}

// SegmentMembershipModel is the membership projection row. It is derived
// state owned entirely by the classifier refresh; rows are replaced, never
// edited.
type SegmentMembershipModel struct {
	WorkspaceID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_ws_user_segment,priority:1"`
	UnifiedUserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_ws_user_segment,priority:2;index"`
	SegmentID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_ws_user_segment,priority:3;index"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SegmentMembershipModel) TableName() string {
	return "segment_memberships"
}
