package syncjob

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDestinationValidation(t *testing.T) {
	_, err := NewDestination(uuid.New(), "salesforce", "crm", nil)
	assert.Error(t, err)

	_, err = NewDestination(uuid.New(), DestinationKlaviyo, "  ", nil)
	assert.Error(t, err)

	dest, err := NewDestination(uuid.New(), DestinationWebhook, "ops hook", nil)
	require.NoError(t, err)
	assert.True(t, dest.Enabled)
	assert.NotNil(t, dest.Config)
}

func TestIsBlockedEvent(t *testing.T) {
	dest, err := NewDestination(uuid.New(), DestinationGA4, "analytics", nil)
	require.NoError(t, err)
	dest.BlockedEvents = []string{"internal_*", "debug_?", "heartbeat"}

	tests := []struct {
		name    string
		event   string
		blocked bool
	}{
		{"prefix glob", "internal_audit", true},
		{"single char glob", "debug_1", true},
		{"single char glob too long", "debug_12", false},
		{"exact", "heartbeat", true},
		{"unrelated", "page_view", false},
		{"prefix without separator", "internals", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, dest.IsBlockedEvent(tt.event))
		})
	}
}

func TestMapEventName(t *testing.T) {
	dest, err := NewDestination(uuid.New(), DestinationMeta, "ads", nil)
	require.NoError(t, err)
	dest.EventMapping = map[string]string{
		"order_completed": "Purchase",
		"empty":           "",
	}

	assert.Equal(t, "Purchase", dest.MapEventName("order_completed"))
	assert.Equal(t, "page_view", dest.MapEventName("page_view"))
	assert.Equal(t, "empty", dest.MapEventName("empty"))
}

func TestEnableClearsError(t *testing.T) {
	dest, err := NewDestination(uuid.New(), DestinationWebhook, "ops hook", nil)
	require.NoError(t, err)
	now := time.Now()

	dest.RecordError("upstream 500", now)
	dest.Disable(now)
	assert.Equal(t, "upstream 500", dest.LastError)

	dest.Enable(now)
	assert.True(t, dest.Enabled)
	assert.Empty(t, dest.LastError)
}
