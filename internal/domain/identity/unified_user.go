package identity

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/scoring"
	"github.com/pulsecdp/backend/internal/domain/shared"
)

// AbsorbedProfile records a unified user consumed by a merge. The absorbed
// user's computed block is noted here on the canonical user; the absorbed
// record itself is dead afterward.
type AbsorbedProfile struct {
	UserID     uuid.UUID               `json:"user_id"`
	Computed   *scoring.ComputedTraits `json:"computed,omitempty"`
	AbsorbedAt time.Time               `json:"absorbed_at"`
}

// UnifiedUser is the durable identity-graph node: the merged customer
// entity all identities of one person point at. Identifier sets are
// pairwise disjoint across users within a workspace; a violation triggers a
// merge rather than being representable.
type UnifiedUser struct {
	shared.WorkspaceAggregateRoot
	PrimaryEmail *string
	Emails       []string
	Phones       []string
	CustomerIDs  []string
	AnonymousIDs []string
	ExternalIDs  map[string]string
	Traits       map[string]interface{}
	Computed     *scoring.ComputedTraits
	MergedFrom   []AbsorbedProfile
	// MergedInto marks a dead record: it is no longer a valid resolution
	// target and everything it owned has been re-pointed at the canonical
	// user.
	MergedInto  *uuid.UUID
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// NewUnifiedUser creates a unified user first observed at the given time
func NewUnifiedUser(workspaceID uuid.UUID, firstSeen time.Time) *UnifiedUser {
	return &UnifiedUser{
		WorkspaceAggregateRoot: shared.NewWorkspaceAggregateRoot(workspaceID),
		ExternalIDs:            map[string]string{},
		Traits:                 map[string]interface{}{},
		FirstSeenAt:            firstSeen,
		LastSeenAt:             firstSeen,
	}
}

// IsMerged reports whether this record is dead (absorbed by another user)
func (u *UnifiedUser) IsMerged() bool {
	return u.MergedInto != nil
}

// Touch advances the seen range to cover the given event time
func (u *UnifiedUser) Touch(eventTime time.Time) {
	if eventTime.Before(u.FirstSeenAt) {
		u.FirstSeenAt = eventTime
	}
	if eventTime.After(u.LastSeenAt) {
		u.LastSeenAt = eventTime
	}
	u.UpdatedAt = time.Now()
}

// AddIdentifier records an identifier value in the matching set. The first
// well-formed email becomes the primary email.
func (u *UnifiedUser) AddIdentifier(typ IdentifierType, value string) {
	value = NormalizeValue(typ, value)
	switch typ {
	case IdentifierTypeEmail:
		u.Emails = appendUnique(u.Emails, value)
		if u.PrimaryEmail == nil && wellFormed(IdentifierTypeEmail, value) {
			u.PrimaryEmail = &value
		}
	case IdentifierTypePhone:
		u.Phones = appendUnique(u.Phones, value)
	case IdentifierTypeCustomerID:
		u.CustomerIDs = appendUnique(u.CustomerIDs, value)
	case IdentifierTypeAnonymous:
		u.AnonymousIDs = appendUnique(u.AnonymousIDs, value)
	}
	u.UpdatedAt = time.Now()
}

// SetTrait sets an operator-supplied trait
func (u *UnifiedUser) SetTrait(key string, value interface{}) {
	if u.Traits == nil {
		u.Traits = map[string]interface{}{}
	}
	u.Traits[key] = value
	u.UpdatedAt = time.Now()
}

// ApplyComputed replaces the derived block wholesale
func (u *UnifiedUser) ApplyComputed(traits scoring.ComputedTraits) {
	u.Computed = &traits
	u.UpdatedAt = time.Now()
	u.IncrementVersion()
}

// Canonical returns the survivor of a merge between two users: the one with
// the earlier first_seen_at, ties broken by lower id bytes so the outcome
// is deterministic for concurrent resolvers.
func Canonical(a, b *UnifiedUser) (winner, loser *UnifiedUser) {
	if a.FirstSeenAt.Before(b.FirstSeenAt) {
		return a, b
	}
	if b.FirstSeenAt.Before(a.FirstSeenAt) {
		return b, a
	}
	if bytes.Compare(a.ID[:], b.ID[:]) <= 0 {
		return a, b
	}
	return b, a
}

// Absorb folds the loser's identifier sets, traits and seen range into the
// canonical user and records the absorbed computed block. The caller is
// responsible for re-pointing identities and events and for marking the
// loser merged, atomically with this.
func (u *UnifiedUser) Absorb(loser *UnifiedUser, at time.Time) error {
	if loser.ID == u.ID {
		return shared.NewDomainError("INVALID_MERGE", "Cannot merge a user into itself")
	}
	if loser.WorkspaceID != u.WorkspaceID {
		return shared.ErrWorkspaceMismatch
	}
	if u.IsMerged() || loser.IsMerged() {
		return shared.NewDomainError("INVALID_MERGE", "Merged users are not valid merge participants")
	}

	for _, v := range loser.Emails {
		u.AddIdentifier(IdentifierTypeEmail, v)
	}
	for _, v := range loser.Phones {
		u.AddIdentifier(IdentifierTypePhone, v)
	}
	for _, v := range loser.CustomerIDs {
		u.AddIdentifier(IdentifierTypeCustomerID, v)
	}
	for _, v := range loser.AnonymousIDs {
		u.AddIdentifier(IdentifierTypeAnonymous, v)
	}
	for k, v := range loser.ExternalIDs {
		if _, exists := u.ExternalIDs[k]; !exists {
			u.ExternalIDs[k] = v
		}
	}
	for k, v := range loser.Traits {
		if _, exists := u.Traits[k]; !exists {
			u.SetTrait(k, v)
		}
	}

	u.Touch(loser.FirstSeenAt)
	u.Touch(loser.LastSeenAt)
	u.MergedFrom = append(u.MergedFrom, AbsorbedProfile{
		UserID:     loser.ID,
		Computed:   loser.Computed,
		AbsorbedAt: at,
	})
	u.MergedFrom = append(u.MergedFrom, loser.MergedFrom...)
	u.IncrementVersion()

	canonical := u.ID
	loser.MergedInto = &canonical
	loser.UpdatedAt = time.Now()
	loser.IncrementVersion()

	return nil
}

func appendUnique(set []string, value string) []string {
	if value == "" {
		return set
	}
	for _, v := range set {
		if v == value {
			return set
		}
	}
	return append(set, value)
}
