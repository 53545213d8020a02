package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulsecdp/backend/internal/domain/identity"
	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/infrastructure/persistence/models"
)

// GormIdentityRepository implements IdentityRepository using GORM
type GormIdentityRepository struct {
	db *gorm.DB
}

// NewGormIdentityRepository creates a new GormIdentityRepository
func NewGormIdentityRepository(db *gorm.DB) *GormIdentityRepository {
	return &GormIdentityRepository{db: db}
}

// FindByTypeValue finds the identity row owning a (type, value) pair within
// a workspace
func (r *GormIdentityRepository) FindByTypeValue(ctx context.Context, workspaceID uuid.UUID, typ identity.IdentifierType, value string) (*identity.Identity, error) {
	var model models.IdentityModel
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND type = ? AND value = ?", workspaceID, typ, value).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Insert persists a first observation of a (type, value) pair. The unique
// index on (workspace, type, value) arbitrates concurrent first observations:
// the loser's row is not written and shared.ErrAlreadyExists tells the caller
// to re-read the winner instead of overwriting its ownership.
func (r *GormIdentityRepository) Insert(ctx context.Context, ident *identity.Identity) error {
	var model models.IdentityModel
	model.FromDomain(ident)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "type"}, {Name: "value"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyExists
	}
	return nil
}

// Save updates an identity previously loaded from the store
func (r *GormIdentityRepository) Save(ctx context.Context, ident *identity.Identity) error {
	var model models.IdentityModel
	model.FromDomain(ident)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByUser returns all identities owned by a unified user
func (r *GormIdentityRepository) FindByUser(ctx context.Context, workspaceID, userID uuid.UUID) ([]identity.Identity, error) {
	var identityModels []models.IdentityModel
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND unified_user_id = ?", workspaceID, userID).
		Order("created_at ASC").
		Find(&identityModels).Error; err != nil {
		return nil, err
	}

	identities := make([]identity.Identity, len(identityModels))
	for i, model := range identityModels {
		identities[i] = *model.ToDomain()
	}
	return identities, nil
}

// DeleteByUser removes all identities owned by a unified user
func (r *GormIdentityRepository) DeleteByUser(ctx context.Context, workspaceID, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("workspace_id = ? AND unified_user_id = ?", workspaceID, userID).
		Delete(&models.IdentityModel{})
	return result.RowsAffected, result.Error
}
