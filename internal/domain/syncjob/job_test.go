package syncjob

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecdp/backend/internal/domain/shared"
)

func newTestJob() *SyncJob {
	return NewProfileUpsertJob(uuid.New(), uuid.New(), uuid.New(), []byte(`{}`))
}

func TestClaimTransitionsToRunning(t *testing.T) {
	job := newTestJob()
	now := time.Now()

	err := job.Claim("worker-1", DefaultClaimLease, now)
	require.NoError(t, err)

	assert.Equal(t, JobStatusRunning, job.Status)
	assert.Equal(t, "worker-1", job.ClaimedBy)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, 2, job.Version)
	require.NotNil(t, job.LeaseExpires)
	assert.Equal(t, now.Add(DefaultClaimLease), *job.LeaseExpires)
}

func TestClaimRejectsNonPending(t *testing.T) {
	job := newTestJob()
	now := time.Now()
	require.NoError(t, job.Claim("worker-1", DefaultClaimLease, now))

	err := job.Claim("worker-2", DefaultClaimLease, now)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, "worker-1", job.ClaimedBy)
}

func TestCompleteSuccessClearsClaim(t *testing.T) {
	job := newTestJob()
	now := time.Now()
	require.NoError(t, job.Claim("worker-1", DefaultClaimLease, now))

	err := job.CompleteSuccess(now)
	require.NoError(t, err)

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, OutcomeSuccess, job.Outcome)
	assert.Empty(t, job.LastError)
	assert.Empty(t, job.ClaimedBy)
	assert.Nil(t, job.LeaseExpires)
	assert.True(t, job.IsTerminal())
}

func TestCompleteSkippedOnlyFromPending(t *testing.T) {
	job := newTestJob()
	now := time.Now()

	err := job.CompleteSkipped("superseded by newer profile state", now)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, OutcomeSkipped, job.Outcome)
	assert.Equal(t, "Skipped: superseded by newer profile state", job.LastError)

	running := newTestJob()
	require.NoError(t, running.Claim("worker-1", DefaultClaimLease, now))
	assert.ErrorIs(t, running.CompleteSkipped("late", now), shared.ErrInvalidState)
}

func TestCompleteBlockedRecordsReason(t *testing.T) {
	job := newTestJob()
	now := time.Now()

	err := job.CompleteBlocked("event name matches internal_*", now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, job.Outcome)
	assert.Equal(t, "Blocked: event name matches internal_*", job.LastError)
}

func TestFailReschedulesWithBackoff(t *testing.T) {
	job := newTestJob()
	now := time.Now()
	require.NoError(t, job.Claim("worker-1", DefaultClaimLease, now))

	err := job.Fail("connection refused", false, now)
	require.NoError(t, err)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, "connection refused", job.LastError)
	require.NotNil(t, job.NextAttemptAt)
	assert.Equal(t, now.Add(DefaultBaseBackoff), *job.NextAttemptAt)
}

func TestFailBackoffDoubles(t *testing.T) {
	job := newTestJob()
	now := time.Now()

	require.NoError(t, job.Claim("worker-1", DefaultClaimLease, now))
	require.NoError(t, job.Fail("timeout", false, now))
	require.NoError(t, job.Claim("worker-1", DefaultClaimLease, now))
	require.NoError(t, job.Fail("timeout", false, now))

	require.NotNil(t, job.NextAttemptAt)
	assert.Equal(t, now.Add(2*DefaultBaseBackoff), *job.NextAttemptAt)
}

func TestFailTerminalAtMaxAttempts(t *testing.T) {
	job := newTestJob()
	now := time.Now()

	for i := 0; i < DefaultMaxAttempts; i++ {
		require.NoError(t, job.Claim("worker-1", DefaultClaimLease, now))
		require.NoError(t, job.Fail("still down", false, now))
	}

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.True(t, job.IsTerminal())
}

func TestFailTerminalOnRejection(t *testing.T) {
	job := newTestJob()
	now := time.Now()
	require.NoError(t, job.Claim("worker-1", DefaultClaimLease, now))

	err := job.Fail("destination rejected payload", true, now)
	require.NoError(t, err)

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempts)
}

func TestRateLimitedReschedulesWithoutCountingAttempt(t *testing.T) {
	job := newTestJob()
	now := time.Now()
	require.NoError(t, job.Claim("worker-1", DefaultClaimLease, now))

	err := job.RateLimited("rate limited: 429", now)
	require.NoError(t, err)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempts)
	assert.Empty(t, job.ClaimedBy)
	assert.Nil(t, job.LeaseExpires)
	require.NotNil(t, job.NextAttemptAt)
	assert.Equal(t, now.Add(DefaultBaseBackoff), *job.NextAttemptAt)
}

func TestRateLimitedCyclesNeverReachTerminal(t *testing.T) {
	job := newTestJob()
	now := time.Now()

	for i := 0; i < DefaultMaxAttempts+3; i++ {
		require.NoError(t, job.Claim("worker-1", DefaultClaimLease, now))
		require.NoError(t, job.RateLimited("rate limited: 429", now))
	}

	assert.Equal(t, JobStatusPending, job.Status)
	assert.False(t, job.IsTerminal())
	assert.Equal(t, 0, job.Attempts)

	// A genuine failure afterwards still follows the normal retry ladder
	require.NoError(t, job.Claim("worker-1", DefaultClaimLease, now))
	require.NoError(t, job.Fail("connection refused", false, now))
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.Attempts)
}

func TestRateLimitedRejectsNonRunning(t *testing.T) {
	job := newTestJob()
	err := job.RateLimited("rate limited: 429", time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRequeueRecoversExpiredLease(t *testing.T) {
	job := newTestJob()
	start := time.Now()
	require.NoError(t, job.Claim("worker-1", DefaultClaimLease, start))

	later := start.Add(DefaultClaimLease + time.Second)
	assert.True(t, job.LeaseExpired(later))

	err := job.Requeue(later)
	require.NoError(t, err)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Empty(t, job.ClaimedBy)
	assert.Equal(t, 1, job.Attempts)
}

func TestRequeueRejectsLiveLease(t *testing.T) {
	job := newTestJob()
	start := time.Now()
	require.NoError(t, job.Claim("worker-1", DefaultClaimLease, start))

	assert.False(t, job.LeaseExpired(start.Add(time.Second)))
	assert.ErrorIs(t, job.Requeue(start.Add(time.Second)), shared.ErrInvalidState)
}
