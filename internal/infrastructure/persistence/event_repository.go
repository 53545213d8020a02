package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/tracking"
	"github.com/pulsecdp/backend/internal/infrastructure/persistence/models"
)

// GormEventRepository implements EventRepository using GORM
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GormEventRepository
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// admitSQL is a single conditional statement: insert the event, and on a
// dedupe key collision increment the stored row's counter instead. xmax = 0
// distinguishes a fresh insert from a conflict update on postgres.
const admitSQL = `
INSERT INTO events
  (id, created_at, updated_at, version, workspace_id, source, name, properties, context, event_time, dedupe_key, dupe_count, unified_user_id)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (dedupe_key)
DO UPDATE SET dupe_count = events.dupe_count + 1, updated_at = EXCLUDED.updated_at
RETURNING id, dupe_count, (xmax = 0) AS admitted`

// Admit stores a new event or bumps the duplicate counter of the row that
// already owns its fingerprint, in one statement
func (r *GormEventRepository) Admit(ctx context.Context, event *tracking.Event) (*tracking.AdmitResult, error) {
	var model models.EventModel
	model.FromDomain(event)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = model.CreatedAt
	}
	if model.Version == 0 {
		model.Version = 1
	}

	var row struct {
		ID        uuid.UUID
		DupeCount int
		Admitted  bool
	}
	err := r.db.WithContext(ctx).Raw(admitSQL,
		model.ID, model.CreatedAt, model.UpdatedAt, model.Version,
		model.WorkspaceID, model.Source, model.Name,
		model.PropertiesJSON, model.ContextJSON, model.EventTime,
		model.DedupeKey, model.DupeCount, model.UnifiedUserID,
	).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}

	return &tracking.AdmitResult{
		Admitted:  row.Admitted,
		DupeCount: row.DupeCount,
		StoredID:  row.ID,
	}, nil
}

// FindByID finds an event within a workspace
func (r *GormEventRepository) FindByID(ctx context.Context, workspaceID, id uuid.UUID) (*tracking.Event, error) {
	var model models.EventModel
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByUser returns a user's events since the given time, ordered by
// ascending event time
func (r *GormEventRepository) FindByUser(ctx context.Context, workspaceID, userID uuid.UUID, since time.Time) ([]tracking.Event, error) {
	var eventModels []models.EventModel
	query := r.db.WithContext(ctx).
		Where("workspace_id = ? AND unified_user_id = ?", workspaceID, userID)
	if !since.IsZero() {
		query = query.Where("event_time >= ?", since)
	}
	if err := query.Order("event_time ASC").Find(&eventModels).Error; err != nil {
		return nil, err
	}

	events := make([]tracking.Event, len(eventModels))
	for i, model := range eventModels {
		events[i] = *model.ToDomain()
	}
	return events, nil
}

// AttachUser sets the unified user link on a stored event
func (r *GormEventRepository) AttachUser(ctx context.Context, workspaceID, eventID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.EventModel{}).
		Where("workspace_id = ? AND id = ?", workspaceID, eventID).
		Update("unified_user_id", userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RepointUser moves every event from one unified user to another
func (r *GormEventRepository) RepointUser(ctx context.Context, workspaceID, fromUserID, toUserID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.EventModel{}).
		Where("workspace_id = ? AND unified_user_id = ?", workspaceID, fromUserID).
		Update("unified_user_id", toUserID)
	return result.RowsAffected, result.Error
}

// ClearUserLink nulls the user reference on a user's events, keeping the
// rows for audit
func (r *GormEventRepository) ClearUserLink(ctx context.Context, workspaceID, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.EventModel{}).
		Where("workspace_id = ? AND unified_user_id = ?", workspaceID, userID).
		Update("unified_user_id", nil)
	return result.RowsAffected, result.Error
}
