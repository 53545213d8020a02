package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecdp/backend/internal/domain/scoring"
)

func TestCanonicalPrefersEarlierFirstSeen(t *testing.T) {
	ws := uuid.New()
	older := NewUnifiedUser(ws, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := NewUnifiedUser(ws, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	winner, loser := Canonical(older, newer)
	assert.Same(t, older, winner)
	assert.Same(t, newer, loser)

	// Argument order does not change the outcome
	winner2, _ := Canonical(newer, older)
	assert.Same(t, older, winner2)
}

func TestCanonicalTieBreaksOnID(t *testing.T) {
	ws := uuid.New()
	seen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewUnifiedUser(ws, seen)
	b := NewUnifiedUser(ws, seen)

	w1, _ := Canonical(a, b)
	w2, _ := Canonical(b, a)
	assert.Equal(t, w1.ID, w2.ID)
}

func TestAbsorbFoldsIdentifiersAndTraits(t *testing.T) {
	ws := uuid.New()
	winner := NewUnifiedUser(ws, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	winner.AddIdentifier(IdentifierTypeEmail, "a@example.com")
	winner.SetTrait("plan", "pro")

	loser := NewUnifiedUser(ws, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	loser.AddIdentifier(IdentifierTypeEmail, "b@example.com")
	loser.AddIdentifier(IdentifierTypePhone, "+1 555 0100")
	loser.AddIdentifier(IdentifierTypeAnonymous, "anon-1")
	loser.SetTrait("plan", "free")
	loser.SetTrait("city", "Lisbon")
	loser.Computed = &scoring.ComputedTraits{IntentScore: 42}
	loser.Touch(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, winner.Absorb(loser, time.Now()))

	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, winner.Emails)
	assert.Equal(t, []string{"+1 555 0100"}, winner.Phones)
	assert.Equal(t, []string{"anon-1"}, winner.AnonymousIDs)
	// Winner's traits win on conflict
	assert.Equal(t, "pro", winner.Traits["plan"])
	assert.Equal(t, "Lisbon", winner.Traits["city"])
	// Primary email stays the winner's
	require.NotNil(t, winner.PrimaryEmail)
	assert.Equal(t, "a@example.com", *winner.PrimaryEmail)

	// Seen range covers both users
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), winner.FirstSeenAt)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), winner.LastSeenAt)

	// Merge bookkeeping
	require.Len(t, winner.MergedFrom, 1)
	assert.Equal(t, loser.ID, winner.MergedFrom[0].UserID)
	assert.Equal(t, 42, winner.MergedFrom[0].Computed.IntentScore)
	require.NotNil(t, loser.MergedInto)
	assert.Equal(t, winner.ID, *loser.MergedInto)
	assert.True(t, loser.IsMerged())
}

func TestAbsorbCarriesTransitiveMergeHistory(t *testing.T) {
	ws := uuid.New()
	a := NewUnifiedUser(ws, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := NewUnifiedUser(ws, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	c := NewUnifiedUser(ws, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))

	require.NoError(t, b.Absorb(c, time.Now()))
	require.NoError(t, a.Absorb(b, time.Now()))

	ids := make([]uuid.UUID, 0, len(a.MergedFrom))
	for _, m := range a.MergedFrom {
		ids = append(ids, m.UserID)
	}
	assert.ElementsMatch(t, []uuid.UUID{b.ID, c.ID}, ids)
}

func TestAbsorbRejections(t *testing.T) {
	ws := uuid.New()
	u := NewUnifiedUser(ws, time.Now())

	assert.Error(t, u.Absorb(u, time.Now()))

	foreign := NewUnifiedUser(uuid.New(), time.Now())
	assert.Error(t, u.Absorb(foreign, time.Now()))

	dead := NewUnifiedUser(ws, time.Now())
	other := uuid.New()
	dead.MergedInto = &other
	assert.Error(t, u.Absorb(dead, time.Now()))
}

func TestAddIdentifierPrimaryEmailSkipsMalformed(t *testing.T) {
	u := NewUnifiedUser(uuid.New(), time.Now())

	u.AddIdentifier(IdentifierTypeEmail, "not-an-email")
	assert.Nil(t, u.PrimaryEmail)

	u.AddIdentifier(IdentifierTypeEmail, "Real@Example.COM")
	require.NotNil(t, u.PrimaryEmail)
	assert.Equal(t, "real@example.com", *u.PrimaryEmail)
	assert.Contains(t, u.Emails, "not-an-email")
}
