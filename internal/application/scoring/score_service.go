package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulsecdp/backend/internal/domain/identity"
	"github.com/pulsecdp/backend/internal/domain/scoring"
	"github.com/pulsecdp/backend/internal/domain/segment"
	"github.com/pulsecdp/backend/internal/domain/tracking"
)

// ScoreService recomputes derived traits for unified users and refreshes
// their segment memberships from the result. All scoring math lives in the
// domain engine; this service only feeds it ordered history and persists
// the output.
type ScoreService struct {
	engine     *scoring.Engine
	classifier *segment.Classifier
	events     tracking.EventRepository
	users      identity.UnifiedUserRepository
	segments   segment.Repository
	logger     *zap.Logger
}

// NewScoreService creates a score service
func NewScoreService(
	engine *scoring.Engine,
	classifier *segment.Classifier,
	events tracking.EventRepository,
	users identity.UnifiedUserRepository,
	segments segment.Repository,
	logger *zap.Logger,
) *ScoreService {
	return &ScoreService{
		engine:     engine,
		classifier: classifier,
		events:     events,
		users:      users,
		segments:   segments,
		logger:     logger,
	}
}

// RecomputeUser rebuilds one user's computed block from full event history
// and replaces its segment memberships. The whole derived state is written
// wholesale; a failed run leaves the previous block intact.
func (s *ScoreService) RecomputeUser(ctx context.Context, workspaceID, userID uuid.UUID) (*scoring.ComputedTraits, error) {
	user, err := s.users.FindByID(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	// Full history: lifetime aggregates reach past the lookback window,
	// the engine applies the window itself
	events, err := s.events.FindByUser(ctx, workspaceID, userID, time.Time{})
	if err != nil {
		return nil, err
	}

	traits := s.engine.Recompute(events, time.Now())
	user.ApplyComputed(traits)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	if err := s.refreshMemberships(ctx, workspaceID, userID, &traits); err != nil {
		return nil, err
	}

	return &traits, nil
}

// RecomputeWorkspace rebuilds every live user in a workspace, continuing
// past per-user failures. Used by the ops recompute endpoint after a policy
// change.
func (s *ScoreService) RecomputeWorkspace(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	ids, err := s.users.ListIDs(ctx, workspaceID)
	if err != nil {
		return 0, err
	}

	recomputed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return recomputed, ctx.Err()
		}
		if _, err := s.RecomputeUser(ctx, workspaceID, id); err != nil {
			s.logger.Warn("workspace recompute: user failed",
				zap.String("workspace_id", workspaceID.String()),
				zap.String("user_id", id.String()),
				zap.Error(err))
			continue
		}
		recomputed++
	}

	s.logger.Info("workspace recompute finished",
		zap.String("workspace_id", workspaceID.String()),
		zap.Int("users", recomputed),
		zap.Int("total", len(ids)))
	return recomputed, nil
}

// DecaySweep recomputes users whose derived block has gone stale without
// new events. Recency decays with wall-clock time, so scores must drop even
// for silent users.
func (s *ScoreService) DecaySweep(ctx context.Context, staleAfter time.Duration, batchSize int) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	stale, err := s.users.FindStale(ctx, cutoff, batchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range stale {
		user := &stale[i]
		if _, err := s.RecomputeUser(ctx, user.WorkspaceID, user.ID); err != nil {
			s.logger.Warn("decay sweep: user failed",
				zap.String("user_id", user.ID.String()),
				zap.Error(err))
			continue
		}
		swept++
	}
	return swept, nil
}

func (s *ScoreService) refreshMemberships(ctx context.Context, workspaceID, userID uuid.UUID, traits *scoring.ComputedTraits) error {
	enabled, err := s.segments.ListEnabled(ctx, workspaceID)
	if err != nil {
		return err
	}
	matched := s.classifier.MatchSegments(traits, enabled)
	return s.segments.ReplaceMemberships(ctx, workspaceID, userID, matched)
}
