package syncjob

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

// DeliveryService executes one claimed job end to end: claim, adapter
// dispatch, terminal transition. The worker pool in infrastructure drives
// it; this service owns the outcome mapping.
type DeliveryService struct {
	jobs         syncjob.SyncJobRepository
	destinations syncjob.DestinationRepository
	adapters     syncjob.Registry
	lease        time.Duration
	logger       *zap.Logger
}

// NewDeliveryService creates a delivery service
func NewDeliveryService(
	jobs syncjob.SyncJobRepository,
	destinations syncjob.DestinationRepository,
	adapters syncjob.Registry,
	lease time.Duration,
	logger *zap.Logger,
) *DeliveryService {
	if lease <= 0 {
		lease = syncjob.DefaultClaimLease
	}
	return &DeliveryService{
		jobs:         jobs,
		destinations: destinations,
		adapters:     adapters,
		lease:        lease,
		logger:       logger,
	}
}

// ProcessNext claims and delivers the next eligible job. It returns false
// when the queue had nothing to claim. busyDestinations excludes
// destinations already at their concurrency cap.
func (s *DeliveryService) ProcessNext(ctx context.Context, workerID string, busyDestinations []uuid.UUID) (bool, error) {
	job, err := s.jobs.ClaimNext(ctx, workerID, s.lease, busyDestinations)
	if err != nil {
		if shared.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	s.deliver(ctx, workerID, job)
	return true, nil
}

func (s *DeliveryService) deliver(ctx context.Context, workerID string, job *syncjob.SyncJob) {
	log := s.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("worker_id", workerID),
		zap.Int("attempt", job.Attempts),
	)

	dest, err := s.destinations.FindByID(ctx, job.WorkspaceID, job.DestinationID)
	if err != nil {
		s.fail(ctx, job, "destination lookup failed: "+err.Error(), false, log)
		return
	}

	adapter, err := s.adapters.Adapter(dest.Type)
	if err != nil {
		s.fail(ctx, job, err.Error(), true, log)
		return
	}

	result, err := s.dispatch(ctx, adapter, dest, job)
	if err != nil {
		s.recordDestError(ctx, dest, err.Error())
		s.fail(ctx, job, err.Error(), false, log)
		return
	}

	now := time.Now()
	switch result.Status {
	case syncjob.DeliveryDelivered:
		if err := job.CompleteSuccess(now); err != nil {
			log.Error("complete transition rejected", zap.Error(err))
			return
		}
		if err := s.jobs.Update(ctx, job); err != nil {
			log.Error("failed to persist completed job", zap.Error(err))
			return
		}
		dest.RecordSync(now)
		if err := s.destinations.Save(ctx, dest); err != nil {
			log.Warn("failed to stamp destination sync time", zap.Error(err))
		}
		log.Info("job delivered", zap.String("destination_type", string(dest.Type)))

	case syncjob.DeliveryRateLimited:
		s.recordDestError(ctx, dest, result.Message)
		if err := job.RateLimited("rate limited: "+result.Message, now); err != nil {
			log.Error("rate-limit transition rejected", zap.Error(err))
			return
		}
		if err := s.jobs.Update(ctx, job); err != nil {
			log.Error("failed to persist throttled job", zap.Error(err))
			return
		}
		log.Info("job throttled, rescheduled", zap.Timep("next_attempt_at", job.NextAttemptAt))

	case syncjob.DeliveryRejected:
		s.recordDestError(ctx, dest, result.Message)
		s.fail(ctx, job, "rejected: "+result.Message, true, log)
	}
}

func (s *DeliveryService) dispatch(ctx context.Context, adapter syncjob.Adapter, dest *syncjob.Destination, job *syncjob.SyncJob) (*syncjob.DeliveryResult, error) {
	switch job.Type {
	case syncjob.JobTypeProfileUpsert:
		var snap syncjob.ProfileSnapshot
		if err := json.Unmarshal(job.Payload, &snap); err != nil {
			return nil, shared.NewDomainError("SNAPSHOT_DECODE_FAILED", err.Error())
		}
		return adapter.UpsertProfile(ctx, dest, &snap)
	case syncjob.JobTypeEventTrack:
		var snap syncjob.TrackSnapshot
		if err := json.Unmarshal(job.Payload, &snap); err != nil {
			return nil, shared.NewDomainError("SNAPSHOT_DECODE_FAILED", err.Error())
		}
		return adapter.TrackEvent(ctx, dest, &snap)
	default:
		return nil, shared.NewDomainError("UNKNOWN_JOB_TYPE", "no dispatch for job type "+string(job.Type))
	}
}

func (s *DeliveryService) fail(ctx context.Context, job *syncjob.SyncJob, msg string, terminal bool, log *zap.Logger) {
	if err := job.Fail(msg, terminal, time.Now()); err != nil {
		log.Error("fail transition rejected", zap.Error(err))
		return
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		log.Error("failed to persist failed job", zap.Error(err))
		return
	}
	if job.Status == syncjob.JobStatusFailed {
		log.Warn("job terminally failed", zap.String("last_error", msg))
	} else {
		log.Info("job rescheduled", zap.Timep("next_attempt_at", job.NextAttemptAt))
	}
}

func (s *DeliveryService) recordDestError(ctx context.Context, dest *syncjob.Destination, msg string) {
	dest.RecordError(msg, time.Now())
	if err := s.destinations.Save(ctx, dest); err != nil {
		s.logger.Warn("failed to record destination error", zap.Error(err))
	}
}
