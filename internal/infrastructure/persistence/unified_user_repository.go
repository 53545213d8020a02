package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulsecdp/backend/internal/domain/identity"
	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/infrastructure/persistence/models"
)

// GormUnifiedUserRepository implements UnifiedUserRepository using GORM
type GormUnifiedUserRepository struct {
	db *gorm.DB
}

// NewGormUnifiedUserRepository creates a new GormUnifiedUserRepository
func NewGormUnifiedUserRepository(db *gorm.DB) *GormUnifiedUserRepository {
	return &GormUnifiedUserRepository{db: db}
}

// FindByID finds a unified user within a workspace
func (r *GormUnifiedUserRepository) FindByID(ctx context.Context, workspaceID, id uuid.UUID) (*identity.UnifiedUser, error) {
	var model models.UnifiedUserModel
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

// Create inserts a new unified user
func (r *GormUnifiedUserRepository) Create(ctx context.Context, user *identity.UnifiedUser) error {
	var model models.UnifiedUserModel
	model.FromDomain(user)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Save persists the full state of a unified user
func (r *GormUnifiedUserRepository) Save(ctx context.Context, user *identity.UnifiedUser) error {
	var model models.UnifiedUserModel
	model.FromDomain(user)
	return r.db.WithContext(ctx).Save(&model).Error
}

// ListIDs returns the ids of all live users in a workspace. Merged-away
// users keep their row as a forward pointer and are excluded.
func (r *GormUnifiedUserRepository) ListIDs(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.UnifiedUserModel{}).
		Where("workspace_id = ? AND merged_into IS NULL", workspaceID).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindStale returns live users whose scores were last computed before the
// cutoff, oldest computation first. Users that were never computed are
// picked up by the regular scoring path, not the sweep.
func (r *GormUnifiedUserRepository) FindStale(ctx context.Context, computedBefore time.Time, limit int) ([]identity.UnifiedUser, error) {
	var userModels []models.UnifiedUserModel
	if err := r.db.WithContext(ctx).
		Where("merged_into IS NULL AND last_computed_at IS NOT NULL AND last_computed_at < ?", computedBefore).
		Order("last_computed_at ASC").
		Limit(limit).
		Find(&userModels).Error; err != nil {
		return nil, err
	}

	users := make([]identity.UnifiedUser, len(userModels))
	for i, model := range userModels {
		users[i] = *model.ToDomain()
	}
	return users, nil
}

// Delete removes a unified user row
func (r *GormUnifiedUserRepository) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		Delete(&models.UnifiedUserModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
