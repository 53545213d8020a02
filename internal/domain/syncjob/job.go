package syncjob

import (
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/shared"
)

// JobType is the kind of outbound work a job carries
type JobType string

const (
	JobTypeProfileUpsert JobType = "profile_upsert"
	JobTypeEventTrack    JobType = "event_track"
)

// JobStatus is the job state machine position. Transitions are monotonic
// except failed→pending on retry scheduling:
// pending -> running -> completed | failed; failed -> pending (retry).
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobOutcome qualifies a completed job
type JobOutcome string

const (
	OutcomeSuccess JobOutcome = "success"
	OutcomeSkipped JobOutcome = "skipped"
	OutcomeBlocked JobOutcome = "blocked"
)

// Default retry configuration
const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 30 * time.Second
	DefaultClaimLease  = 2 * time.Minute
)

// SyncJob is one durable unit of outbound work targeting a destination.
// LastError is structured: empty on success, "Skipped: …" / "Blocked: …"
// for policy completions, otherwise a genuine failure message.
type SyncJob struct {
	shared.WorkspaceAggregateRoot
	Type          JobType
	DestinationID uuid.UUID
	UnifiedUserID uuid.UUID
	EventID       *uuid.UUID
	Payload       []byte
	Status        JobStatus
	Outcome       JobOutcome
	Attempts      int
	MaxAttempts   int
	LastError     string
	ClaimedBy     string
	LeaseExpires  *time.Time
	NextAttemptAt *time.Time
	CompletedAt   *time.Time
}

// NewProfileUpsertJob creates a pending profile_upsert job with a payload
// snapshot taken at enqueue time
func NewProfileUpsertJob(workspaceID, destinationID, userID uuid.UUID, payload []byte) *SyncJob {
	return newJob(workspaceID, destinationID, userID, JobTypeProfileUpsert, payload, nil)
}

// NewEventTrackJob creates a pending event_track job
func NewEventTrackJob(workspaceID, destinationID, userID, eventID uuid.UUID, payload []byte) *SyncJob {
	return newJob(workspaceID, destinationID, userID, JobTypeEventTrack, payload, &eventID)
}

func newJob(workspaceID, destinationID, userID uuid.UUID, typ JobType, payload []byte, eventID *uuid.UUID) *SyncJob {
	return &SyncJob{
		WorkspaceAggregateRoot: shared.NewWorkspaceAggregateRoot(workspaceID),
		Type:                   typ,
		DestinationID:          destinationID,
		UnifiedUserID:          userID,
		EventID:                eventID,
		Payload:                payload,
		Status:                 JobStatusPending,
		MaxAttempts:            DefaultMaxAttempts,
	}
}

// Claim transitions pending→running for exactly one worker and arms the
// crash-recovery lease. The aggregate version is bumped per claim; terminal
// writes are guarded on it, so a stale claimer cannot overwrite a reclaim.
func (j *SyncJob) Claim(workerID string, lease time.Duration, now time.Time) error {
	if j.Status != JobStatusPending {
		return shared.ErrInvalidState
	}
	expires := now.Add(lease)
	j.Status = JobStatusRunning
	j.ClaimedBy = workerID
	j.LeaseExpires = &expires
	j.Attempts++
	j.IncrementVersion()
	j.UpdatedAt = now
	return nil
}

// CompleteSuccess terminates the job after a delivered adapter call
func (j *SyncJob) CompleteSuccess(now time.Time) error {
	return j.complete(OutcomeSuccess, "", now)
}

// CompleteSkipped terminates a superseded job without delivery. The reason
// is retained for audit, never silently dropped.
func (j *SyncJob) CompleteSkipped(reason string, now time.Time) error {
	if j.Status != JobStatusPending {
		return shared.ErrInvalidState
	}
	j.Status = JobStatusCompleted
	j.Outcome = OutcomeSkipped
	j.LastError = "Skipped: " + reason
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// CompleteBlocked terminates a job filtered by destination policy before it
// ever reaches the adapter
func (j *SyncJob) CompleteBlocked(reason string, now time.Time) error {
	if j.Status != JobStatusPending {
		return shared.ErrInvalidState
	}
	j.Status = JobStatusCompleted
	j.Outcome = OutcomeBlocked
	j.LastError = "Blocked: " + reason
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

func (j *SyncJob) complete(outcome JobOutcome, lastError string, now time.Time) error {
	if j.Status != JobStatusRunning {
		return shared.ErrInvalidState
	}
	j.Status = JobStatusCompleted
	j.Outcome = outcome
	j.LastError = lastError
	j.CompletedAt = &now
	j.ClaimedBy = ""
	j.LeaseExpires = nil
	j.UpdatedAt = now
	return nil
}

// Fail records a delivery failure. Below the attempt cap the job is
// rescheduled pending with exponential backoff; at the cap it stays
// terminally failed and is surfaced to operators instead of retried
// forever. Permanent rejections pass terminal=true to skip retries.
func (j *SyncJob) Fail(errMsg string, terminal bool, now time.Time) error {
	if j.Status != JobStatusRunning {
		return shared.ErrInvalidState
	}
	j.LastError = errMsg
	j.ClaimedBy = ""
	j.LeaseExpires = nil
	j.UpdatedAt = now

	if terminal || j.Attempts >= j.MaxAttempts {
		j.Status = JobStatusFailed
		j.CompletedAt = &now
		return nil
	}

	// 30s, 1m, 2m, 4m, ...
	backoff := DefaultBaseBackoff * time.Duration(1<<uint(j.Attempts-1))
	next := now.Add(backoff)
	j.Status = JobStatusPending
	j.NextAttemptAt = &next
	return nil
}

// RateLimited reschedules a running job after the destination throttled it.
// Throttling is backoff, not failure: the claim's attempt is handed back, so
// rate-limited claims never count toward the attempt cap.
func (j *SyncJob) RateLimited(msg string, now time.Time) error {
	if j.Status != JobStatusRunning {
		return shared.ErrInvalidState
	}
	backoff := DefaultBaseBackoff * time.Duration(1<<uint(j.Attempts-1))
	next := now.Add(backoff)
	j.Attempts--
	j.Status = JobStatusPending
	j.LastError = msg
	j.ClaimedBy = ""
	j.LeaseExpires = nil
	j.NextAttemptAt = &next
	j.UpdatedAt = now
	return nil
}

// LeaseExpired reports whether a running job's claim lease has lapsed
func (j *SyncJob) LeaseExpired(now time.Time) bool {
	return j.Status == JobStatusRunning && j.LeaseExpires != nil && j.LeaseExpires.Before(now)
}

// Requeue returns an expired-lease running job to pending without touching
// the attempt count; the crashed worker's attempt already counted.
func (j *SyncJob) Requeue(now time.Time) error {
	if !j.LeaseExpired(now) {
		return shared.ErrInvalidState
	}
	j.Status = JobStatusPending
	j.ClaimedBy = ""
	j.LeaseExpires = nil
	j.UpdatedAt = now
	return nil
}

// IsTerminal reports whether the job reached a terminal state
func (j *SyncJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
