package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IdentityRepository defines persistence for observed identifiers
type IdentityRepository interface {
	// FindByTypeValue looks up the identity owning a (type, value) pair in
	// a workspace; shared.ErrNotFound when unseen
	FindByTypeValue(ctx context.Context, workspaceID uuid.UUID, typ IdentifierType, value string) (*Identity, error)

	// Insert persists a first observation of a (type, value) pair. When a
	// concurrent resolver already inserted the pair, the store keeps the
	// winner's row untouched and returns shared.ErrAlreadyExists so the
	// loser re-reads the owner instead of stealing it.
	Insert(ctx context.Context, identity *Identity) error

	// Save updates an identity previously loaded from the store
	// (reobservation, ownership move during merge)
	Save(ctx context.Context, identity *Identity) error

	// FindByUser returns all identities owned by a unified user
	FindByUser(ctx context.Context, workspaceID, userID uuid.UUID) ([]Identity, error)

	// DeleteByUser removes all identities owned by a user (profile deletion)
	DeleteByUser(ctx context.Context, workspaceID, userID uuid.UUID) (int64, error)
}

// UnifiedUserRepository defines persistence for identity-graph nodes
type UnifiedUserRepository interface {
	// FindByID finds a unified user within a workspace
	FindByID(ctx context.Context, workspaceID, id uuid.UUID) (*UnifiedUser, error)

	// Create persists a new unified user
	Create(ctx context.Context, user *UnifiedUser) error

	// Save updates an existing unified user
	Save(ctx context.Context, user *UnifiedUser) error

	// ListIDs returns the ids of all live (non-merged) users in a workspace
	ListIDs(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error)

	// FindStale returns live users whose scores were last computed before
	// the cutoff; used by the decay sweep
	FindStale(ctx context.Context, computedBefore time.Time, limit int) ([]UnifiedUser, error)

	// Delete removes a unified user (profile deletion)
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error
}

// MergeResult summarizes an executed merge
type MergeResult struct {
	CanonicalID     uuid.UUID
	MergedID        uuid.UUID
	EventsRepointed int64
	IdentitiesMoved int64
}

// Merger executes the two-user merge. The implementation must be atomic
// with respect to concurrent resolutions touching either user: both rows
// are locked for the duration, always acquiring the lower id first so two
// overlapping merges cannot deadlock. A half-applied merge is a
// consistency bug, not a retryable error.
type Merger interface {
	Merge(ctx context.Context, workspaceID, aID, bID uuid.UUID) (*MergeResult, error)
}
