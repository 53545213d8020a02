package identity

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

// ProfileService serves the unified profile read model and handles profile
// deletion requests
type ProfileService struct {
	users      identity.UnifiedUserRepository
	identities identity.IdentityRepository
	events     tracking.EventRepository
	segments   segment.Repository
	logger     *zap.Logger
}

// NewProfileService creates a profile service
func NewProfileService(
	users identity.UnifiedUserRepository,
	identities identity.IdentityRepository,
	events tracking.EventRepository,
	segments segment.Repository,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		users:      users,
		identities: identities,
		events:     events,
		segments:   segments,
		logger:     logger,
	}
}

// ProfileDTO is the external view of a unified user
type ProfileDTO struct {
	ID           uuid.UUID               `json:"id"`
	PrimaryEmail *string                 `json:"primary_email,omitempty"`
	Emails       []string                `json:"emails,omitempty"`
	Phones       []string                `json:"phones,omitempty"`
	CustomerIDs  []string                `json:"customer_ids,omitempty"`
	AnonymousIDs []string                `json:"anonymous_ids,omitempty"`
	Traits       map[string]interface{}  `json:"traits,omitempty"`
	Computed     *scoring.ComputedTraits `json:"computed,omitempty"`
	Segments     []string                `json:"segments,omitempty"`
	MergedCount  int                     `json:"merged_count"`
	FirstSeenAt  time.Time               `json:"first_seen_at"`
	LastSeenAt   time.Time               `json:"last_seen_at"`
}

// DeletionReport summarizes what a profile deletion removed
type DeletionReport struct {
	UserID            uuid.UUID `json:"user_id"`
	IdentitiesDeleted int64     `json:"identities_deleted"`
	EventsUnlinked    int64     `json:"events_unlinked"`
}

// GetProfile returns a unified user with its segment memberships. Merged
// users transparently resolve to their canonical record.
func (s *ProfileService) GetProfile(ctx context.Context, workspaceID, userID uuid.UUID) (*ProfileDTO, error) {
	user, err := s.users.FindByID(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	for user.IsMerged() {
		user, err = s.users.FindByID(ctx, workspaceID, *user.MergedInto)
		if err != nil {
			return nil, err
		}
	}

	keys, err := s.segments.ListMemberships(ctx, workspaceID, user.ID)
	if err != nil {
		return nil, err
	}

	return &ProfileDTO{
		ID:           user.ID,
		PrimaryEmail: user.PrimaryEmail,
		Emails:       user.Emails,
		Phones:       user.Phones,
		CustomerIDs:  user.CustomerIDs,
		AnonymousIDs: user.AnonymousIDs,
		Traits:       user.Traits,
		Computed:     user.Computed,
		Segments:     keys,
		MergedCount:  len(user.MergedFrom),
		FirstSeenAt:  user.FirstSeenAt,
		LastSeenAt:   user.LastSeenAt,
	}, nil
}

// DeleteProfile removes a unified user and its identity material. Events
// stay stored for aggregate counts but lose their user reference; the
// person is no longer resolvable or syncable.
func (s *ProfileService) DeleteProfile(ctx context.Context, workspaceID, userID uuid.UUID) (*DeletionReport, error) {
	user, err := s.users.FindByID(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	unlinked, err := s.events.ClearUserLink(ctx, workspaceID, user.ID)
	if err != nil {
		return nil, err
	}
	deleted, err := s.identities.DeleteByUser(ctx, workspaceID, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.segments.DeleteMemberships(ctx, workspaceID, user.ID); err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, workspaceID, user.ID); err != nil {
		return nil, err
	}

	s.logger.Info("profile deleted",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("user_id", user.ID.String()),
		zap.Int64("identities_deleted", deleted),
		zap.Int64("events_unlinked", unlinked))

	return &DeletionReport{
		UserID:            user.ID,
		IdentitiesDeleted: deleted,
		EventsUnlinked:    unlinked,
	}, nil
}
