package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulsecdp/backend/internal/domain/segment"
	"github.com/pulsecdp/backend/internal/infrastructure/persistence/models"
)

// GormSegmentRepository implements segment.Repository using GORM
type GormSegmentRepository struct {
	db *gorm.DB
}

// NewGormSegmentRepository creates a new GormSegmentRepository
func NewGormSegmentRepository(db *gorm.DB) *GormSegmentRepository {
	return &GormSegmentRepository{db: db}
}

// ListEnabled returns the enabled segment definitions for a workspace
func (r *GormSegmentRepository) ListEnabled(ctx context.Context, workspaceID uuid.UUID) ([]segment.Segment, error) {
	var segmentModels []models.SegmentModel
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND enabled = ?", workspaceID, true).
		Order("key ASC").
		Find(&segmentModels).Error; err != nil {
		return nil, err
	}

	segments := make([]segment.Segment, len(segmentModels))
	for i, model := range segmentModels {
		segments[i] = *model.ToDomain()
	}
	return segments, nil
}

// Save creates or updates a segment definition
func (r *GormSegmentRepository) Save(ctx context.Context, seg *segment.Segment) error {
	var model models.SegmentModel
	model.FromDomain(seg)
	return r.db.WithContext(ctx).Save(&model).Error
}

// ReplaceMemberships atomically replaces a user's membership projection
// with the freshly classified set
func (r *GormSegmentRepository) ReplaceMemberships(ctx context.Context, workspaceID, userID uuid.UUID, segmentIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("workspace_id = ? AND unified_user_id = ?", workspaceID, userID).
			Delete(&models.SegmentMembershipModel{}).Error; err != nil {
			return err
		}
		if len(segmentIDs) == 0 {
			return nil
		}

		now := time.Now().UTC()
		rows := make([]models.SegmentMembershipModel, len(segmentIDs))
		for i, segmentID := range segmentIDs {
			rows[i] = models.SegmentMembershipModel{
				WorkspaceID:   workspaceID,
				UnifiedUserID: userID,
				SegmentID:     segmentID,
				CreatedAt:     now,
			}
		}
		return tx.Create(&rows).Error
	})
}

// ListMemberships returns the segment keys a user currently belongs to
func (r *GormSegmentRepository) ListMemberships(ctx context.Context, workspaceID, userID uuid.UUID) ([]string, error) {
	var keys []string
	if err := r.db.WithContext(ctx).Model(&models.SegmentMembershipModel{}).
		Joins("JOIN segments ON segments.id = segment_memberships.segment_id").
		Where("segment_memberships.workspace_id = ? AND segment_memberships.unified_user_id = ?", workspaceID, userID).
		Order("segments.key ASC").
		Pluck("segments.key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// DeleteMemberships drops all memberships for a user
func (r *GormSegmentRepository) DeleteMemberships(ctx context.Context, workspaceID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("workspace_id = ? AND unified_user_id = ?", workspaceID, userID).
		Delete(&models.SegmentMembershipModel{}).Error
}
