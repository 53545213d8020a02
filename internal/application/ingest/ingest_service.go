package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appidentity "github.com/pulsecdp/backend/internal/application/identity"
	appscoring "github.com/pulsecdp/backend/internal/application/scoring"
	appsyncjob "github.com/pulsecdp/backend/internal/application/syncjob"
	"github.com/pulsecdp/backend/internal/domain/segment"
	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/tracking"
)

// DuplicateChecker is an optional cache consulted before the authoritative
// store admit. Its answer is a hint only: hit, miss or cache outage, the
// store admit always runs and its verdict decides whether the pipeline
// continues.
type DuplicateChecker interface {
	// Seen marks the key and reports whether it was already marked
	Seen(ctx context.Context, dedupeKey string) (bool, error)
}

// IngestService runs the synchronous intake pipeline: admit, resolve,
// score, classify, enqueue. The producer's HTTP response reflects the
// event's final durable state; there is no async gap in which an accepted
// event is unprocessed.
type IngestService struct {
	events     tracking.EventRepository
	resolver   *appidentity.ResolutionService
	scorer     *appscoring.ScoreService
	queue      *appsyncjob.QueueService
	segments   segment.Repository
	duplicates DuplicateChecker
	logger     *zap.Logger
}

// NewIngestService creates an ingest service. duplicates may be nil; the
// store admit is authoritative either way.
func NewIngestService(
	events tracking.EventRepository,
	resolver *appidentity.ResolutionService,
	scorer *appscoring.ScoreService,
	queue *appsyncjob.QueueService,
	segments segment.Repository,
	duplicates DuplicateChecker,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		events:     events,
		resolver:   resolver,
		scorer:     scorer,
		queue:      queue,
		segments:   segments,
		duplicates: duplicates,
		logger:     logger,
	}
}

// IngestRequest is one incoming event from any producer path
type IngestRequest struct {
	Source           string                 `json:"source" binding:"required"`
	Name             string                 `json:"name" binding:"required"`
	Properties       map[string]interface{} `json:"properties"`
	Context          map[string]interface{} `json:"context"`
	EventTime        time.Time              `json:"event_time" binding:"required"`
	IdempotencyToken string                 `json:"idempotency_token"`
}

// IngestResult is the synchronous pipeline outcome returned to the producer
type IngestResult struct {
	Accepted      bool       `json:"accepted"`
	Duplicate     bool       `json:"duplicate"`
	EventID       uuid.UUID  `json:"event_id"`
	DupeCount     int        `json:"dupe_count,omitempty"`
	UnifiedUserID *uuid.UUID `json:"unified_user_id,omitempty"`
	IntentScore   *int       `json:"intent_score,omitempty"`
	JobsEnqueued  int        `json:"jobs_enqueued"`
}

// Ingest processes one event through the full pipeline. Duplicates return
// early with the stored event's id; storage unavailability surfaces as an
// error so the producer retries rather than silently losing the event.
func (s *IngestService) Ingest(ctx context.Context, workspaceID uuid.UUID, req *IngestRequest) (*IngestResult, error) {
	event, err := tracking.NewEvent(
		workspaceID,
		tracking.EventSource(req.Source),
		req.Name,
		req.Properties,
		req.Context,
		req.EventTime,
		req.IdempotencyToken,
	)
	if err != nil {
		return nil, err
	}

	cacheHit := false
	if s.duplicates != nil {
		seen, err := s.duplicates.Seen(ctx, event.DedupeKey)
		if err != nil {
			// Cache outages never reject events
			s.logger.Warn("duplicate cache unavailable", zap.Error(err))
		} else {
			cacheHit = seen
		}
	}

	admit, err := s.events.Admit(ctx, event)
	if err != nil {
		return nil, err
	}
	if !admit.Admitted {
		return &IngestResult{Duplicate: true, EventID: admit.StoredID, DupeCount: admit.DupeCount}, nil
	}
	if cacheHit {
		// The cache marks keys before the store admit, so a marked key can
		// belong to an attempt that failed before it was stored. The store
		// verdict is authoritative: a fresh admission runs the pipeline.
		s.logger.Debug("dedupe cache hit superseded by store admission",
			zap.String("dedupe_key", event.DedupeKey))
	}

	result := &IngestResult{Accepted: true, EventID: event.ID}

	resolution, err := s.resolver.Resolve(ctx, event)
	if err != nil {
		return nil, err
	}
	if resolution.User == nil {
		// No identifier material: the event is stored and countable but
		// cannot reach scoring or destinations
		return result, nil
	}
	user := resolution.User
	result.UnifiedUserID = &user.ID

	traits, err := s.scorer.RecomputeUser(ctx, workspaceID, user.ID)
	if err != nil {
		return nil, err
	}
	result.IntentScore = &traits.IntentScore
	user.ApplyComputed(*traits)

	segmentKeys, err := s.matchedSegmentKeys(ctx, workspaceID, user.ID)
	if err != nil {
		return nil, err
	}

	profileJobs, err := s.queue.EnqueueProfileSync(ctx, user, segmentKeys)
	if err != nil {
		return nil, err
	}
	eventJobs, err := s.queue.EnqueueEventSync(ctx, event, user)
	if err != nil {
		return nil, err
	}
	result.JobsEnqueued = profileJobs + eventJobs

	return result, nil
}

// matchedSegmentKeys reads back the membership projection refreshed by the
// scorer so enqueue snapshots carry current segment keys
func (s *IngestService) matchedSegmentKeys(ctx context.Context, workspaceID, userID uuid.UUID) ([]string, error) {
	memberships, err := s.segments.ListMemberships(ctx, workspaceID, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return memberships, nil
}
