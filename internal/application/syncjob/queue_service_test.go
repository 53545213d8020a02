package syncjob

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsecdp/backend/internal/domain/identity"
	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/syncjob"
	"github.com/pulsecdp/backend/internal/domain/tracking"
)

type mockJobRepo struct {
	jobs []*syncjob.SyncJob
}

func (r *mockJobRepo) Enqueue(ctx context.Context, job *syncjob.SyncJob) error {
	// Pending profile upserts for the same destination+user are superseded
	if job.Type == syncjob.JobTypeProfileUpsert {
		for _, existing := range r.jobs {
			if existing.Type == syncjob.JobTypeProfileUpsert &&
				existing.Status == syncjob.JobStatusPending &&
				existing.DestinationID == job.DestinationID &&
				existing.UnifiedUserID == job.UnifiedUserID {
				_ = existing.CompleteSkipped("superseded by a newer profile snapshot", time.Now())
			}
		}
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *mockJobRepo) FindByID(ctx context.Context, workspaceID, id uuid.UUID) (*syncjob.SyncJob, error) {
	for _, j := range r.jobs {
		if j.ID == id && j.WorkspaceID == workspaceID {
			return j, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *mockJobRepo) ClaimNext(ctx context.Context, workerID string, lease time.Duration, busy []uuid.UUID) (*syncjob.SyncJob, error) {
	for _, j := range r.jobs {
		if j.Status != syncjob.JobStatusPending {
			continue
		}
		skip := false
		for _, b := range busy {
			if j.DestinationID == b {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if err := j.Claim(workerID, lease, time.Now()); err != nil {
			return nil, err
		}
		return j, nil
	}
	return nil, shared.ErrNotFound
}

func (r *mockJobRepo) Update(ctx context.Context, job *syncjob.SyncJob) error { return nil }

func (r *mockJobRepo) RequeueExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, j := range r.jobs {
		if j.LeaseExpired(now) {
			if err := j.Requeue(now); err == nil {
				n++
			}
		}
	}
	return n, nil
}

func (r *mockJobRepo) CountByStatus(ctx context.Context, workspaceID uuid.UUID) (*syncjob.StatusCounts, error) {
	counts := &syncjob.StatusCounts{}
	for _, j := range r.jobs {
		if j.WorkspaceID != workspaceID {
			continue
		}
		switch j.Status {
		case syncjob.JobStatusPending:
			counts.Pending++
		case syncjob.JobStatusRunning:
			counts.Running++
		case syncjob.JobStatusCompleted:
			counts.Completed++
		case syncjob.JobStatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

func (r *mockJobRepo) CountRunningByDestination(ctx context.Context) (map[uuid.UUID]int64, error) {
	out := map[uuid.UUID]int64{}
	for _, j := range r.jobs {
		if j.Status == syncjob.JobStatusRunning {
			out[j.DestinationID]++
		}
	}
	return out, nil
}

func (r *mockJobRepo) ListRecent(ctx context.Context, workspaceID uuid.UUID, filter shared.Filter) (*shared.Paginated[syncjob.SyncJob], error) {
	var items []syncjob.SyncJob
	for _, j := range r.jobs {
		if j.WorkspaceID == workspaceID {
			items = append(items, *j)
		}
	}
	page := shared.NewPaginated(items, int64(len(items)), 1, 20)
	return &page, nil
}

func (r *mockJobRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type mockDestRepo struct {
	destinations []*syncjob.Destination
}

func (r *mockDestRepo) Create(ctx context.Context, d *syncjob.Destination) error {
	r.destinations = append(r.destinations, d)
	return nil
}

func (r *mockDestRepo) Save(ctx context.Context, d *syncjob.Destination) error { return nil }

func (r *mockDestRepo) FindByID(ctx context.Context, workspaceID, id uuid.UUID) (*syncjob.Destination, error) {
	for _, d := range r.destinations {
		if d.ID == id && d.WorkspaceID == workspaceID {
			return d, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *mockDestRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]syncjob.Destination, error) {
	var out []syncjob.Destination
	for _, d := range r.destinations {
		if d.WorkspaceID == workspaceID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *mockDestRepo) ListEnabled(ctx context.Context, workspaceID uuid.UUID) ([]syncjob.Destination, error) {
	var out []syncjob.Destination
	for _, d := range r.destinations {
		if d.WorkspaceID == workspaceID && d.Enabled {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *mockDestRepo) Delete(ctx context.Context, workspaceID, id uuid.UUID) error { return nil }

func mustDestination(t *testing.T, ws uuid.UUID, typ syncjob.DestinationType, name string) *syncjob.Destination {
	t.Helper()
	d, err := syncjob.NewDestination(ws, typ, name, nil)
	require.NoError(t, err)
	return d
}

func TestEnqueueProfileSyncFansOutToEnabledOnly(t *testing.T) {
	ws := uuid.New()
	jobs := &mockJobRepo{}
	dests := &mockDestRepo{}
	enabled := mustDestination(t, ws, syncjob.DestinationKlaviyo, "email")
	disabled := mustDestination(t, ws, syncjob.DestinationGA4, "analytics")
	disabled.Disable(time.Now())
	require.NoError(t, dests.Create(context.Background(), enabled))
	require.NoError(t, dests.Create(context.Background(), disabled))

	svc := NewQueueService(jobs, dests, zap.NewNop())
	user := identity.NewUnifiedUser(ws, time.Now())

	n, err := svc.EnqueueProfileSync(context.Background(), user, []string{"hot"})
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, enabled.ID, jobs.jobs[0].DestinationID)

	var snap syncjob.ProfileSnapshot
	require.NoError(t, json.Unmarshal(jobs.jobs[0].Payload, &snap))
	assert.Equal(t, user.ID, snap.UserID)
	assert.Equal(t, []string{"hot"}, snap.Segments)
}

func TestEnqueueProfileSyncSupersedesPending(t *testing.T) {
	ws := uuid.New()
	jobs := &mockJobRepo{}
	dests := &mockDestRepo{}
	require.NoError(t, dests.Create(context.Background(), mustDestination(t, ws, syncjob.DestinationWebhook, "hook")))

	svc := NewQueueService(jobs, dests, zap.NewNop())
	user := identity.NewUnifiedUser(ws, time.Now())

	_, err := svc.EnqueueProfileSync(context.Background(), user, nil)
	require.NoError(t, err)
	_, err = svc.EnqueueProfileSync(context.Background(), user, nil)
	require.NoError(t, err)

	require.Len(t, jobs.jobs, 2)
	first, second := jobs.jobs[0], jobs.jobs[1]
	assert.Equal(t, syncjob.JobStatusCompleted, first.Status)
	assert.Equal(t, syncjob.OutcomeSkipped, first.Outcome)
	assert.Equal(t, syncjob.JobStatusPending, second.Status)
}

func TestEnqueueEventSyncBlockedPattern(t *testing.T) {
	ws := uuid.New()
	jobs := &mockJobRepo{}
	dests := &mockDestRepo{}
	dest := mustDestination(t, ws, syncjob.DestinationMeta, "ads")
	dest.BlockedEvents = []string{"internal_*"}
	require.NoError(t, dests.Create(context.Background(), dest))

	svc := NewQueueService(jobs, dests, zap.NewNop())
	user := identity.NewUnifiedUser(ws, time.Now())
	event, err := tracking.NewEvent(ws, tracking.EventSourceJS, "internal_audit", nil, nil, time.Now(), "tok")
	require.NoError(t, err)

	n, err := svc.EnqueueEventSync(context.Background(), event, user)
	require.NoError(t, err)

	// Blocked jobs are recorded but not counted as live work
	assert.Equal(t, 0, n)
	require.Len(t, jobs.jobs, 1)
	job := jobs.jobs[0]
	assert.Equal(t, syncjob.JobStatusCompleted, job.Status)
	assert.Equal(t, syncjob.OutcomeBlocked, job.Outcome)
	assert.Contains(t, job.LastError, "Blocked:")
}

func TestEnqueueEventSyncMapsEventName(t *testing.T) {
	ws := uuid.New()
	jobs := &mockJobRepo{}
	dests := &mockDestRepo{}
	dest := mustDestination(t, ws, syncjob.DestinationMeta, "ads")
	dest.EventMapping = map[string]string{"order_completed": "Purchase"}
	require.NoError(t, dests.Create(context.Background(), dest))

	svc := NewQueueService(jobs, dests, zap.NewNop())
	user := identity.NewUnifiedUser(ws, time.Now())
	event, err := tracking.NewEvent(ws, tracking.EventSourceWebhook, "order_completed",
		map[string]interface{}{"total": 99.0}, nil, time.Now(), "tok")
	require.NoError(t, err)

	_, err = svc.EnqueueEventSync(context.Background(), event, user)
	require.NoError(t, err)

	require.Len(t, jobs.jobs, 1)
	var snap syncjob.TrackSnapshot
	require.NoError(t, json.Unmarshal(jobs.jobs[0].Payload, &snap))
	assert.Equal(t, "Purchase", snap.Name)
	assert.Equal(t, event.ID, snap.EventID)
}
