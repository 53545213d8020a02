package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecdp/backend/internal/domain/tracking"
)

func TestNewIdentityConfidence(t *testing.T) {
	ws := uuid.New()
	owner := uuid.New()

	tests := []struct {
		name       string
		typ        IdentifierType
		value      string
		confidence float64
	}{
		{"customer id", IdentifierTypeCustomerID, "cust-42", 1.0},
		{"well-formed email", IdentifierTypeEmail, "user@example.com", 0.95},
		{"well-formed phone", IdentifierTypePhone, "+1 555 0100", 0.9},
		{"anonymous id", IdentifierTypeAnonymous, "anon-1", 0.5},
		{"malformed email kept at low confidence", IdentifierTypeEmail, "not-an-email", 0.2},
		{"malformed phone kept at low confidence", IdentifierTypePhone, "abc", 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewIdentity(ws, tt.typ, tt.value, tracking.EventSourceJS, owner)
			require.NoError(t, err)
			assert.InDelta(t, tt.confidence, id.Confidence, 1e-9)
		})
	}
}

func TestNewIdentityNormalizesEmail(t *testing.T) {
	id, err := NewIdentity(uuid.New(), IdentifierTypeEmail, "  User@Example.COM ", tracking.EventSourceWebhook, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", id.Value)
}

func TestNewIdentityRejectsEmptyAndUnknownType(t *testing.T) {
	_, err := NewIdentity(uuid.New(), IdentifierTypeEmail, "   ", tracking.EventSourceJS, uuid.New())
	assert.Error(t, err)

	_, err = NewIdentity(uuid.New(), IdentifierType("fingerprint"), "x", tracking.EventSourceJS, uuid.New())
	assert.Error(t, err)
}

func TestReobserveNudgesConfidence(t *testing.T) {
	id, err := NewIdentity(uuid.New(), IdentifierTypeAnonymous, "anon-1", tracking.EventSourceJS, uuid.New())
	require.NoError(t, err)

	before := id.Confidence
	id.Reobserve(tracking.EventSourceWebhook)
	assert.Greater(t, id.Confidence, before)
	assert.LessOrEqual(t, id.Confidence, 1.0)
	assert.Equal(t, tracking.EventSourceWebhook, id.Source)
}

func TestExtractIdentifiers(t *testing.T) {
	ws := uuid.New()
	ev, err := tracking.NewEvent(ws, tracking.EventSourceJS, "page_view",
		map[string]interface{}{"email": "Buyer@Shop.com", "customer_id": "c-9"},
		map[string]interface{}{"anonymous_id": "anon-7"},
		time.Now(), "tok-1")
	require.NoError(t, err)

	out := ExtractIdentifiers(ev)

	assert.ElementsMatch(t, []ObservedIdentifier{
		{IdentifierTypeAnonymous, "anon-7"},
		{IdentifierTypeEmail, "buyer@shop.com"},
		{IdentifierTypeCustomerID, "c-9"},
	}, out)
}

func TestExtractIdentifiersContextWinsOverProperties(t *testing.T) {
	ev, err := tracking.NewEvent(uuid.New(), tracking.EventSourceJS, "page_view",
		map[string]interface{}{"email": "prop@example.com"},
		map[string]interface{}{"email": "ctx@example.com"},
		time.Now(), "tok-2")
	require.NoError(t, err)

	out := ExtractIdentifiers(ev)
	require.Len(t, out, 1)
	assert.Equal(t, "ctx@example.com", out[0].Value)
}

func TestExtractIdentifiersEmptyEvent(t *testing.T) {
	ev, err := tracking.NewEvent(uuid.New(), tracking.EventSourceJS, "page_view", nil, nil, time.Now(), "tok-3")
	require.NoError(t, err)
	assert.Empty(t, ExtractIdentifiers(ev))
}
