package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulsecdp/backend/internal/domain/syncjob"
	"github.com/pulsecdp/backend/internal/infrastructure/persistence/models"
)

// GormPipelineStatsRepository implements PipelineStatsRepository using GORM.
// It only reads grouped counts and never mutates pipeline tables.
type GormPipelineStatsRepository struct {
	db *gorm.DB
}

// NewGormPipelineStatsRepository creates a new GormPipelineStatsRepository
func NewGormPipelineStatsRepository(db *gorm.DB) *GormPipelineStatsRepository {
	return &GormPipelineStatsRepository{db: db}
}

// PipelineStats returns the workspace-wide pipeline counts. Admitted counts
// event rows; duplicates sums the per-row dupe counters, so an event admitted
// once and replayed twice reports one admission and two duplicates.
func (r *GormPipelineStatsRepository) PipelineStats(ctx context.Context, workspaceID uuid.UUID) (*syncjob.PipelineStats, error) {
	stats := &syncjob.PipelineStats{SegmentMembers: map[string]int64{}}

	var eventCounts struct {
		Admitted   int64
		Duplicates int64
	}
	if err := r.db.WithContext(ctx).Model(&models.EventModel{}).
		Select("COUNT(*) as admitted, COALESCE(SUM(dupe_count), 0) as duplicates").
		Where("workspace_id = ?", workspaceID).
		Scan(&eventCounts).Error; err != nil {
		return nil, err
	}
	stats.AdmittedEvents = eventCounts.Admitted
	stats.DuplicateEvents = eventCounts.Duplicates

	if err := r.db.WithContext(ctx).Model(&models.IdentityModel{}).
		Where("workspace_id = ?", workspaceID).
		Count(&stats.Identities).Error; err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Model(&models.UnifiedUserModel{}).
		Where("workspace_id = ? AND merged_into IS NULL", workspaceID).
		Count(&stats.UnifiedUsers).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.UnifiedUserModel{}).
		Where("workspace_id = ? AND merged_into IS NOT NULL", workspaceID).
		Count(&stats.MergedUsers).Error; err != nil {
		return nil, err
	}

	// Keyed by the segment key, the stable identifier dashboards filter on
	var memberRows []struct {
		Key   string
		Count int64
	}
	if err := r.db.WithContext(ctx).Model(&models.SegmentMembershipModel{}).
		Select("segments.key as key, COUNT(*) as count").
		Joins("JOIN segments ON segments.id = segment_memberships.segment_id").
		Where("segment_memberships.workspace_id = ?", workspaceID).
		Group("segments.key").
		Scan(&memberRows).Error; err != nil {
		return nil, err
	}
	for _, row := range memberRows {
		stats.SegmentMembers[row.Key] = row.Count
	}

	return stats, nil
}
