package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulsecdp/backend/internal/domain/identity"
	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/tracking"
)

// ResolutionService assigns every admitted event to exactly one unified
// user. It extracts identifiers from the event, looks up their current
// owners, and either reuses a user, creates one, or merges when the event
// bridges users that were separate until now.
type ResolutionService struct {
	identities identity.IdentityRepository
	users      identity.UnifiedUserRepository
	events     tracking.EventRepository
	merger     identity.Merger
	logger     *zap.Logger
}

// NewResolutionService creates a resolution service
func NewResolutionService(
	identities identity.IdentityRepository,
	users identity.UnifiedUserRepository,
	events tracking.EventRepository,
	merger identity.Merger,
	logger *zap.Logger,
) *ResolutionService {
	return &ResolutionService{
		identities: identities,
		users:      users,
		events:     events,
		merger:     merger,
		logger:     logger,
	}
}

// Resolution reports the outcome of resolving one event
type Resolution struct {
	User        *identity.UnifiedUser
	Created     bool
	MergedUsers []uuid.UUID
}

// Resolve links an admitted event to its unified user. Events without any
// identifier resolve to no user: they stay stored but unattached.
//
// When the event's identifiers span more than one existing user, those
// users are merged pairwise into one canonical user before the event is
// attached. The merge itself is delegated to the Merger, which locks both
// rows in id order so overlapping resolutions serialize instead of
// deadlocking.
func (s *ResolutionService) Resolve(ctx context.Context, event *tracking.Event) (*Resolution, error) {
	observed := identity.ExtractIdentifiers(event)
	if len(observed) == 0 {
		return &Resolution{}, nil
	}

	known := make(map[string]*identity.Identity, len(observed))
	ownerIDs := make([]uuid.UUID, 0, 2)
	seenOwner := map[uuid.UUID]struct{}{}
	for _, obs := range observed {
		existing, err := s.identities.FindByTypeValue(ctx, event.WorkspaceID, obs.Type, obs.Value)
		if err != nil {
			if shared.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		known[identKey(obs)] = existing
		if _, dup := seenOwner[existing.UnifiedUserID]; !dup {
			seenOwner[existing.UnifiedUserID] = struct{}{}
			ownerIDs = append(ownerIDs, existing.UnifiedUserID)
		}
	}

	res := &Resolution{}
	var userID uuid.UUID
	switch len(ownerIDs) {
	case 0:
		user := identity.NewUnifiedUser(event.WorkspaceID, event.EventTime)
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		res.Created = true
		userID = user.ID
	case 1:
		userID = ownerIDs[0]
	default:
		canonical, merged, err := s.mergeAll(ctx, event.WorkspaceID, ownerIDs)
		if err != nil {
			return nil, err
		}
		res.MergedUsers = merged
		userID = canonical
	}

	user, err := s.users.FindByID(ctx, event.WorkspaceID, userID)
	if err != nil {
		return nil, err
	}
	// A concurrent merge may have absorbed the user between the owner
	// lookup and here; follow the forward pointer.
	for user.IsMerged() {
		user, err = s.users.FindByID(ctx, event.WorkspaceID, *user.MergedInto)
		if err != nil {
			return nil, err
		}
	}

	for _, obs := range observed {
		if existing, ok := known[identKey(obs)]; ok {
			existing.Reobserve(event.Source)
			if existing.UnifiedUserID != user.ID {
				existing.Reassign(user.ID)
			}
			if err := s.identities.Save(ctx, existing); err != nil {
				return nil, err
			}
		} else {
			ident, err := identity.NewIdentity(event.WorkspaceID, obs.Type, obs.Value, event.Source, user.ID)
			if err != nil {
				return nil, err
			}
			if err := s.identities.Insert(ctx, ident); err != nil {
				// A concurrent resolution claimed the pair first. The
				// winner's row stands; fold its owner into ours so the
				// pair ends up on one canonical user.
				if !errors.Is(err, shared.ErrAlreadyExists) {
					return nil, err
				}
				user, err = s.adoptOwner(ctx, event.WorkspaceID, obs, user, res)
				if err != nil {
					return nil, err
				}
			}
		}
		user.AddIdentifier(obs.Type, obs.Value)
	}

	user.Touch(event.EventTime)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	if err := s.events.AttachUser(ctx, event.WorkspaceID, event.ID, user.ID); err != nil {
		return nil, err
	}
	event.AttachUser(user.ID)

	res.User = user
	return res, nil
}

// adoptOwner resolves a lost insert race on a (type, value) pair. It
// re-reads the pair's winning row and, when its owner differs from the
// user resolved so far, merges both so the identifier sets stay disjoint.
func (s *ResolutionService) adoptOwner(ctx context.Context, workspaceID uuid.UUID, obs identity.ObservedIdentifier, user *identity.UnifiedUser, res *Resolution) (*identity.UnifiedUser, error) {
	winner, err := s.identities.FindByTypeValue(ctx, workspaceID, obs.Type, obs.Value)
	if err != nil {
		return nil, err
	}
	if winner.UnifiedUserID == user.ID {
		return user, nil
	}

	result, err := s.merger.Merge(ctx, workspaceID, user.ID, winner.UnifiedUserID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("merged unified users after insert race",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("canonical_id", result.CanonicalID.String()),
		zap.String("merged_id", result.MergedID.String()),
		zap.Int64("events_repointed", result.EventsRepointed),
	)
	res.MergedUsers = append(res.MergedUsers, result.MergedID)

	merged, err := s.users.FindByID(ctx, workspaceID, result.CanonicalID)
	if err != nil {
		return nil, err
	}
	for merged.IsMerged() {
		merged, err = s.users.FindByID(ctx, workspaceID, *merged.MergedInto)
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// mergeAll folds every owner into one canonical user, pairwise
func (s *ResolutionService) mergeAll(ctx context.Context, workspaceID uuid.UUID, ownerIDs []uuid.UUID) (uuid.UUID, []uuid.UUID, error) {
	canonical := ownerIDs[0]
	merged := make([]uuid.UUID, 0, len(ownerIDs)-1)
	for _, other := range ownerIDs[1:] {
		result, err := s.merger.Merge(ctx, workspaceID, canonical, other)
		if err != nil {
			return uuid.Nil, nil, err
		}
		s.logger.Info("merged unified users",
			zap.String("workspace_id", workspaceID.String()),
			zap.String("canonical_id", result.CanonicalID.String()),
			zap.String("merged_id", result.MergedID.String()),
			zap.Int64("events_repointed", result.EventsRepointed),
		)
		merged = append(merged, result.MergedID)
		canonical = result.CanonicalID
	}
	return canonical, merged, nil
}

func identKey(obs identity.ObservedIdentifier) string {
	return string(obs.Type) + "\x00" + obs.Value
}
