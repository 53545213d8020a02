package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/syncjob"
	"github.com/pulsecdp/backend/internal/infrastructure/persistence/models"
)

// GormSyncJobRepository implements SyncJobRepository using GORM
type GormSyncJobRepository struct {
	db *gorm.DB
}

// NewGormSyncJobRepository creates a new GormSyncJobRepository
func NewGormSyncJobRepository(db *gorm.DB) *GormSyncJobRepository {
	return &GormSyncJobRepository{db: db}
}

// Enqueue inserts a job. For pending profile_upsert jobs the still-pending
// predecessors for the same (workspace, destination, user) are completed as
// skipped in the same transaction, so the destination only ever sees the
// freshest profile state.
func (r *GormSyncJobRepository) Enqueue(ctx context.Context, job *syncjob.SyncJob) error {
	var model models.SyncJobModel
	model.FromDomain(job)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if job.Type == syncjob.JobTypeProfileUpsert && job.Status == syncjob.JobStatusPending {
			now := time.Now().UTC()
			err := tx.Model(&models.SyncJobModel{}).
				Where("workspace_id = ? AND destination_id = ? AND unified_user_id = ? AND type = ? AND status = ?",
					job.WorkspaceID, job.DestinationID, job.UnifiedUserID,
					syncjob.JobTypeProfileUpsert, syncjob.JobStatusPending).
				Updates(map[string]interface{}{
					"status":       syncjob.JobStatusCompleted,
					"outcome":      syncjob.OutcomeSkipped,
					"last_error":   "Skipped: superseded by a newer profile state",
					"completed_at": now,
					"updated_at":   now,
				}).Error
			if err != nil {
				return err
			}
		}
		return tx.Create(&model).Error
	})
}

// FindByID finds a job within a workspace
func (r *GormSyncJobRepository) FindByID(ctx context.Context, workspaceID, id uuid.UUID) (*syncjob.SyncJob, error) {
	var model models.SyncJobModel
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

// ClaimNext claims the oldest eligible pending job for a worker. The row is
// locked with SKIP LOCKED so concurrent workers never fight over it, and
// jobs for disabled or saturated destinations are passed over.
func (r *GormSyncJobRepository) ClaimNext(ctx context.Context, workerID string, lease time.Duration, busyDestinations []uuid.UUID) (*syncjob.SyncJob, error) {
	var claimed *syncjob.SyncJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		query := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED", Table: clause.Table{Name: "sync_jobs"}}).
			Select("sync_jobs.*").
			Joins("JOIN destinations ON destinations.id = sync_jobs.destination_id").
			Where("sync_jobs.status = ? AND destinations.enabled = ?", syncjob.JobStatusPending, true).
			Where("sync_jobs.next_attempt_at IS NULL OR sync_jobs.next_attempt_at <= ?", now)
		if len(busyDestinations) > 0 {
			query = query.Where("sync_jobs.destination_id NOT IN ?", busyDestinations)
		}

		var model models.SyncJobModel
		if err := query.Order("sync_jobs.created_at ASC").First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		job := model.ToDomain()
		if err := job.Claim(workerID, lease, now); err != nil {
			return err
		}
		model.FromDomain(job)
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Update persists a transition made by the claiming worker. The write is
// guarded on the row still being a running job at the worker's claim
// version: once the lease reaper returns the job to pending, or another
// worker reclaims it at a higher version, the stale worker's write matches
// nothing.
func (r *GormSyncJobRepository) Update(ctx context.Context, job *syncjob.SyncJob) error {
	var model models.SyncJobModel
	model.FromDomain(job)

	result := r.db.WithContext(ctx).Model(&models.SyncJobModel{}).
		Where("id = ? AND status = ? AND version = ?", job.ID, syncjob.JobStatusRunning, job.Version).
		Select("status", "outcome", "attempts", "last_error", "claimed_by",
			"lease_expires", "next_attempt_at", "completed_at", "updated_at", "version").
		Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrInvalidState
	}
	return nil
}

// RequeueExpired returns expired-lease running jobs to pending. The crashed
// worker's attempt already counted, so the attempt counter is left alone.
func (r *GormSyncJobRepository) RequeueExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.SyncJobModel{}).
		Where("status = ? AND lease_expires IS NOT NULL AND lease_expires < ?", syncjob.JobStatusRunning, now).
		Updates(map[string]interface{}{
			"status":        syncjob.JobStatusPending,
			"claimed_by":    "",
			"lease_expires": nil,
			"updated_at":    now,
		})
	return result.RowsAffected, result.Error
}

// CountByStatus returns the queue depth breakdown for a workspace
func (r *GormSyncJobRepository) CountByStatus(ctx context.Context, workspaceID uuid.UUID) (*syncjob.StatusCounts, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.SyncJobModel{}).
		Select("status, COUNT(*) as count").
		Where("workspace_id = ?", workspaceID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := &syncjob.StatusCounts{}
	for _, row := range rows {
		switch syncjob.JobStatus(row.Status) {
		case syncjob.JobStatusPending:
			counts.Pending = row.Count
		case syncjob.JobStatusRunning:
			counts.Running = row.Count
		case syncjob.JobStatusCompleted:
			counts.Completed = row.Count
		case syncjob.JobStatusFailed:
			counts.Failed = row.Count
		}
	}
	return counts, nil
}

// CountRunningByDestination returns the in-flight job count per destination
// across all workspaces; the worker pool uses it to cap per-destination
// concurrency
func (r *GormSyncJobRepository) CountRunningByDestination(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		DestinationID uuid.UUID
		Count         int64
	}
	if err := r.db.WithContext(ctx).Model(&models.SyncJobModel{}).
		Select("destination_id, COUNT(*) as count").
		Where("status = ?", syncjob.JobStatusRunning).
		Group("destination_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.DestinationID] = row.Count
	}
	return counts, nil
}

// ListRecent returns a workspace's jobs, newest first, paginated
func (r *GormSyncJobRepository) ListRecent(ctx context.Context, workspaceID uuid.UUID, filter shared.Filter) (*shared.Paginated[syncjob.SyncJob], error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&models.SyncJobModel{}).
		Where("workspace_id = ?", workspaceID)
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if destinationID, ok := filter.Filters["destination_id"]; ok {
		query = query.Where("destination_id = ?", destinationID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var jobModels []models.SyncJobModel
	if err := query.
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]syncjob.SyncJob, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = *model.ToDomain()
	}
	out := shared.NewPaginated(jobs, total, filter.Page, filter.PageSize)
	return &out, nil
}

// DeleteTerminalOlderThan prunes completed and failed jobs past the
// retention horizon
func (r *GormSyncJobRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ? AND completed_at IS NOT NULL AND completed_at < ?",
			[]syncjob.JobStatus{syncjob.JobStatusCompleted, syncjob.JobStatusFailed}, cutoff).
		Delete(&models.SyncJobModel{})
	return result.RowsAffected, result.Error
}
