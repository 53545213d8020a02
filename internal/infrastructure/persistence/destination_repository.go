package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/syncjob"
	"github.com/pulsecdp/backend/internal/infrastructure/persistence/models"
)

// GormDestinationRepository implements DestinationRepository using GORM
type GormDestinationRepository struct {
	db *gorm.DB
}

// NewGormDestinationRepository creates a new GormDestinationRepository
func NewGormDestinationRepository(db *gorm.DB) *GormDestinationRepository {
	return &GormDestinationRepository{db: db}
}

// Create inserts a new destination
func (r *GormDestinationRepository) Create(ctx context.Context, dest *syncjob.Destination) error {
	var model models.DestinationModel
	model.FromDomain(dest)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Save persists the full state of a destination
func (r *GormDestinationRepository) Save(ctx context.Context, dest *syncjob.Destination) error {
	var model models.DestinationModel
	model.FromDomain(dest)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID finds a destination within a workspace
func (r *GormDestinationRepository) FindByID(ctx context.Context, workspaceID, id uuid.UUID) (*syncjob.Destination, error) {
	var model models.DestinationModel
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

// ListByWorkspace returns all destinations in a workspace
func (r *GormDestinationRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]syncjob.Destination, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID))
}

// ListEnabled returns the enabled destinations in a workspace; fan-out
// targets only these
func (r *GormDestinationRepository) ListEnabled(ctx context.Context, workspaceID uuid.UUID) ([]syncjob.Destination, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("workspace_id = ? AND enabled = ?", workspaceID, true))
}

func (r *GormDestinationRepository) list(ctx context.Context, query *gorm.DB) ([]syncjob.Destination, error) {
	var destModels []models.DestinationModel
	if err := query.Order("created_at ASC").Find(&destModels).Error; err != nil {
		return nil, err
	}

	destinations := make([]syncjob.Destination, len(destModels))
	for i, model := range destModels {
		destinations[i] = *model.ToDomain()
	}
	return destinations, nil
}

// Delete removes a destination
func (r *GormDestinationRepository) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.DestinationModel{}, "workspace_id = ? AND id = ?", workspaceID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
