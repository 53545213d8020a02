package syncjob

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/pulsecdp/backend/internal/domain/identity"
	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/syncjob"
	"github.com/pulsecdp/backend/internal/domain/tracking"
)

// QueueService fans out profile and event changes into durable sync jobs,
// one per enabled destination. Payload snapshots are taken at enqueue time
// so delivery does not depend on later state.
type QueueService struct {
	jobs         syncjob.SyncJobRepository
	destinations syncjob.DestinationRepository
	logger       *zap.Logger
}

// NewQueueService creates a queue service
func NewQueueService(
	jobs syncjob.SyncJobRepository,
	destinations syncjob.DestinationRepository,
	logger *zap.Logger,
) *QueueService {
	return &QueueService{
		jobs:         jobs,
		destinations: destinations,
		logger:       logger,
	}
}

// EnqueueProfileSync enqueues a profile_upsert job per enabled destination.
// The repository completes any still-pending upsert for the same
// (destination, user) as skipped in the same transaction: the new snapshot
// supersedes it.
func (s *QueueService) EnqueueProfileSync(ctx context.Context, user *identity.UnifiedUser, segmentKeys []string) (int, error) {
	destinations, err := s.destinations.ListEnabled(ctx, user.WorkspaceID)
	if err != nil {
		return 0, err
	}
	if len(destinations) == 0 {
		return 0, nil
	}

	payload, err := json.Marshal(profileSnapshot(user, segmentKeys))
	if err != nil {
		return 0, shared.NewDomainError("SNAPSHOT_ENCODE_FAILED", err.Error())
	}

	enqueued := 0
	for i := range destinations {
		dest := &destinations[i]
		job := syncjob.NewProfileUpsertJob(user.WorkspaceID, dest.ID, user.ID, payload)
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

// EnqueueEventSync enqueues an event_track job per enabled destination.
// Events matching a destination's blocked patterns still get a job row, but
// it is born completed with outcome blocked: the decision is auditable
// without an adapter call.
func (s *QueueService) EnqueueEventSync(ctx context.Context, event *tracking.Event, user *identity.UnifiedUser) (int, error) {
	destinations, err := s.destinations.ListEnabled(ctx, event.WorkspaceID)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for i := range destinations {
		dest := &destinations[i]
		job := syncjob.NewEventTrackJob(event.WorkspaceID, dest.ID, user.ID, event.ID, nil)

		if dest.IsBlockedEvent(event.Name) {
			if err := job.CompleteBlocked("event "+event.Name+" matches a blocked pattern", time.Now()); err != nil {
				return enqueued, err
			}
			if err := s.jobs.Enqueue(ctx, job); err != nil {
				return enqueued, err
			}
			continue
		}

		payload, err := json.Marshal(trackSnapshot(event, user, dest))
		if err != nil {
			return enqueued, shared.NewDomainError("SNAPSHOT_ENCODE_FAILED", err.Error())
		}
		job.Payload = payload
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

func profileSnapshot(user *identity.UnifiedUser, segmentKeys []string) *syncjob.ProfileSnapshot {
	snap := &syncjob.ProfileSnapshot{
		UserID:      user.ID,
		Emails:      user.Emails,
		Phones:      user.Phones,
		CustomerIDs: user.CustomerIDs,
		ExternalIDs: user.ExternalIDs,
		Traits:      user.Traits,
		Segments:    segmentKeys,
		FirstSeenAt: user.FirstSeenAt,
		LastSeenAt:  user.LastSeenAt,
	}
	if user.PrimaryEmail != nil {
		snap.PrimaryEmail = *user.PrimaryEmail
	}
	if user.Computed != nil {
		snap.IntentScore = user.Computed.IntentScore
		snap.DropOffStage = string(user.Computed.DropOffStage)
		snap.TopCategory = user.Computed.TopCategory
		snap.LifetimeValue = user.Computed.LifetimeValue
		snap.OrdersCount = user.Computed.OrdersCount
	}
	return snap
}

func trackSnapshot(event *tracking.Event, user *identity.UnifiedUser, dest *syncjob.Destination) *syncjob.TrackSnapshot {
	return &syncjob.TrackSnapshot{
		EventID:    event.ID,
		UserID:     user.ID,
		Name:       dest.MapEventName(event.Name),
		Properties: event.Properties,
		EventTime:  event.EventTime,
	}
}
