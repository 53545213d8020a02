package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/identity"
	"github.com/pulsecdp/backend/internal/domain/scoring"
	"github.com/pulsecdp/backend/internal/domain/tracking"
)

// IdentityModel is the persistence model for observed identifiers. The
// composite unique index enforces one owner per (workspace, type, value);
// the fields are spelled out instead of embedding the base so workspace_id
// can join that index.
type IdentityModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
	Version       int       `gorm:"not null;default:1"`
	WorkspaceID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_identities_ws_type_value,priority:1"`
	Type          string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_identities_ws_type_value,priority:2"`
	Value         string    `gorm:"type:varchar(512);not null;uniqueIndex:idx_identities_ws_type_value,priority:3"`
	Confidence    float64   `gorm:"not null"`
	Source        string    `gorm:"type:varchar(20);not null"`
	UnifiedUserID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (IdentityModel) TableName() string {
	return "identities"
}

// ToDomain converts the persistence model to a domain Identity
func (m *IdentityModel) ToDomain() *identity.Identity {
	i := &identity.Identity{
		Type:          identity.IdentifierType(m.Type),
		Value:         m.Value,
		Confidence:    m.Confidence,
		Source:        tracking.EventSource(m.Source),
		UnifiedUserID: m.UnifiedUserID,
	}
	i.ID = m.ID
	i.CreatedAt = m.CreatedAt
	i.UpdatedAt = m.UpdatedAt
	i.Version = m.Version
	i.WorkspaceID = m.WorkspaceID
	return i
}

// FromDomain populates the persistence model from a domain Identity
func (m *IdentityModel) FromDomain(i *identity.Identity) {
	m.ID = i.ID
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
	m.Version = i.Version
	m.WorkspaceID = i.WorkspaceID
	m.Type = string(i.Type)
	m.Value = i.Value
	m.Confidence = i.Confidence
	m.Source = string(i.Source)
	m.UnifiedUserID = i.UnifiedUserID
}

// UnifiedUserModel is the persistence model for identity-graph nodes
type UnifiedUserModel struct {
	WorkspaceAggregateModel
	PrimaryEmail    *string    `gorm:"type:varchar(320)"`
	EmailsJSON      string     `gorm:"column:emails;type:jsonb;default:'[]'"`
	PhonesJSON      string     `gorm:"column:phones;type:jsonb;default:'[]'"`
	CustomerIDsJSON string     `gorm:"column:customer_ids;type:jsonb;default:'[]'"`
	AnonymousJSON   string     `gorm:"column:anonymous_ids;type:jsonb;default:'[]'"`
	ExternalIDsJSON string     `gorm:"column:external_ids;type:jsonb;default:'{}'"`
	TraitsJSON      string     `gorm:"column:traits;type:jsonb;default:'{}'"`
	ComputedJSON    string     `gorm:"column:computed;type:jsonb"`
	MergedFromJSON  string     `gorm:"column:merged_from;type:jsonb;default:'[]'"`
	MergedInto      *uuid.UUID `gorm:"type:uuid;index"`
	LastComputedAt  *time.Time `gorm:"index"`
	FirstSeenAt     time.Time  `gorm:"not null"`
	LastSeenAt      time.Time  `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (UnifiedUserModel) TableName() string {
	return "unified_users"
}

// ToDomain converts the persistence model to a domain UnifiedUser
func (m *UnifiedUserModel) ToDomain() *identity.UnifiedUser {
	u := &identity.UnifiedUser{
		PrimaryEmail: m.PrimaryEmail,
		Emails:       decodeJSONSlice[string](m.EmailsJSON),
		Phones:       decodeJSONSlice[string](m.PhonesJSON),
		CustomerIDs:  decodeJSONSlice[string](m.CustomerIDsJSON),
		AnonymousIDs: decodeJSONSlice[string](m.AnonymousJSON),
		ExternalIDs:  decodeStringMap(m.ExternalIDsJSON),
		Traits:       decodeJSONMap(m.TraitsJSON),
		MergedFrom:   decodeJSONSlice[identity.AbsorbedProfile](m.MergedFromJSON),
		MergedInto:   m.MergedInto,
		FirstSeenAt:  m.FirstSeenAt,
		LastSeenAt:   m.LastSeenAt,
	}
	m.PopulateWorkspaceAggregateRoot(&u.WorkspaceAggregateRoot)
	if m.ComputedJSON != "" {
		var computed scoring.ComputedTraits
		if err := json.Unmarshal([]byte(m.ComputedJSON), &computed); err == nil {
			u.Computed = &computed
		}
	}
	return u
}

// FromDomain populates the persistence model from a domain UnifiedUser
func (m *UnifiedUserModel) FromDomain(u *identity.UnifiedUser) {
	m.FromDomainWorkspaceAggregateRoot(u.WorkspaceAggregateRoot)
	m.PrimaryEmail = u.PrimaryEmail
	m.EmailsJSON = encodeJSONSlice(u.Emails)
	m.PhonesJSON = encodeJSONSlice(u.Phones)
	m.CustomerIDsJSON = encodeJSONSlice(u.CustomerIDs)
	m.AnonymousJSON = encodeJSONSlice(u.AnonymousIDs)
	m.ExternalIDsJSON = encodeStringMap(u.ExternalIDs)
	m.TraitsJSON = encodeJSONMap(u.Traits)
	m.MergedFromJSON = encodeJSONSlice(u.MergedFrom)
	m.MergedInto = u.MergedInto
	m.FirstSeenAt = u.FirstSeenAt
	m.LastSeenAt = u.LastSeenAt
	if u.Computed != nil {
		if raw, err := json.Marshal(u.Computed); err == nil {
			m.ComputedJSON = string(raw)
		}
		t := u.Computed.LastComputedAt
		m.LastComputedAt = &t
	}
}

func encodeStringMap(in map[string]string) string {
	if len(in) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func decodeStringMap(raw string) map[string]string {
	out := map[string]string{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
