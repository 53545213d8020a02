package syncjob

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/shared"
)

// StatusCounts is the queue depth breakdown for stats endpoints
type StatusCounts struct {
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// SyncJobRepository persists the outbound queue.
//
// Enqueue applies the supersession rule for profile_upsert jobs: any still
// pending profile_upsert for the same (workspace, destination, user) is
// completed as skipped in the same transaction the new job is inserted in.
// Running jobs are in flight and never superseded.
//
// ClaimNext atomically claims the oldest eligible pending job (enabled
// destination, next_attempt_at elapsed) for a worker using a skip-locked
// read so concurrent workers never claim the same row. It returns
// shared.ErrNotFound when the queue is drained.
type SyncJobRepository interface {
	Enqueue(ctx context.Context, job *SyncJob) error
	FindByID(ctx context.Context, workspaceID, id uuid.UUID) (*SyncJob, error)
	ClaimNext(ctx context.Context, workerID string, lease time.Duration, busyDestinations []uuid.UUID) (*SyncJob, error)
	// Update persists a terminal or requeue transition. The write is
	// guarded on the stored row still carrying the claimer's running
	// version, so a worker whose lease was reaped cannot overwrite the
	// reclaimed job.
	Update(ctx context.Context, job *SyncJob) error
	// RequeueExpired returns expired-lease running jobs to pending and
	// reports how many were recovered
	RequeueExpired(ctx context.Context, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, workspaceID uuid.UUID) (*StatusCounts, error)
	CountRunningByDestination(ctx context.Context) (map[uuid.UUID]int64, error)
	ListRecent(ctx context.Context, workspaceID uuid.UUID, filter shared.Filter) (*shared.Paginated[SyncJob], error)
	// DeleteTerminalOlderThan prunes completed and failed jobs past the
	// retention horizon
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DestinationRepository persists destination configuration
type DestinationRepository interface {
	Create(ctx context.Context, dest *Destination) error
	Save(ctx context.Context, dest *Destination) error
	FindByID(ctx context.Context, workspaceID, id uuid.UUID) (*Destination, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]Destination, error)
	ListEnabled(ctx context.Context, workspaceID uuid.UUID) ([]Destination, error)
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error
}
