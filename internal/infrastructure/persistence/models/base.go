package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// WorkspaceAggregateModel provides common persistence fields for
// workspace-scoped aggregate roots
type WorkspaceAggregateModel struct {
	AggregateModel
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainWorkspaceAggregateRoot populates WorkspaceAggregateModel from
// the domain root
func (m *WorkspaceAggregateModel) FromDomainWorkspaceAggregateRoot(w shared.WorkspaceAggregateRoot) {
	m.FromDomainAggregateRoot(w.BaseAggregateRoot)
	m.WorkspaceID = w.WorkspaceID
}

// PopulateWorkspaceAggregateRoot populates a domain root from the model
func (m *WorkspaceAggregateModel) PopulateWorkspaceAggregateRoot(w *shared.WorkspaceAggregateRoot) {
	w.ID = m.ID
	w.CreatedAt = m.CreatedAt
	w.UpdatedAt = m.UpdatedAt
	w.Version = m.Version
	w.WorkspaceID = m.WorkspaceID
}
