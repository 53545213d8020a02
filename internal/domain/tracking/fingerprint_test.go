package tracking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func fingerprintInput() FingerprintInput {
	return FingerprintInput{
		WorkspaceID: uuid.MustParse("3f1c3f64-9aa0-4c2f-b9d2-1f6f4a1c2d3e"),
		Source:      EventSourceJS,
		Name:        "product_viewed",
		Properties: map[string]interface{}{
			"sku":      "A-100",
			"price":    19.99,
			"category": "shoes",
		},
		EventTime: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	in := fingerprintInput()
	first := Fingerprint(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Fingerprint(fingerprintInput()))
	}
}

func TestFingerprintIgnoresPropertyOrder(t *testing.T) {
	a := fingerprintInput()
	b := fingerprintInput()
	b.Properties = map[string]interface{}{
		"category": "shoes",
		"price":    19.99,
		"sku":      "A-100",
	}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintTokenDominates(t *testing.T) {
	a := fingerprintInput()
	a.IdempotencyToken = "order-42"
	b := fingerprintInput()
	b.IdempotencyToken = "order-42"
	b.Properties = map[string]interface{}{"completely": "different"}
	b.EventTime = b.EventTime.Add(48 * time.Hour)
	assert.Equal(t, Fingerprint(a), Fingerprint(b), "token-carrying submissions dedupe on the token alone")

	c := fingerprintInput()
	c.IdempotencyToken = "order-43"
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestFingerprintTimeBucketing(t *testing.T) {
	base := fingerprintInput()

	sameBucket := fingerprintInput()
	sameBucket.EventTime = base.EventTime.Add(time.Minute)
	assert.Equal(t, Fingerprint(base), Fingerprint(sameBucket))

	nextBucket := fingerprintInput()
	nextBucket.EventTime = base.EventTime.Add(DedupeWindow)
	assert.NotEqual(t, Fingerprint(base), Fingerprint(nextBucket))
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint(fingerprintInput())

	tests := []struct {
		name   string
		mutate func(*FingerprintInput)
	}{
		{"workspace", func(in *FingerprintInput) { in.WorkspaceID = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001") }},
		{"source", func(in *FingerprintInput) { in.Source = EventSourceWebhook }},
		{"name", func(in *FingerprintInput) { in.Name = "product_added" }},
		{"property value", func(in *FingerprintInput) { in.Properties["sku"] = "A-101" }},
		{"extra property", func(in *FingerprintInput) { in.Properties["ref"] = "email" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fingerprintInput()
			tt.mutate(&in)
			assert.NotEqual(t, base, Fingerprint(in))
		})
	}
}

func TestFingerprintNestedProperties(t *testing.T) {
	a := fingerprintInput()
	a.Properties["items"] = []interface{}{
		map[string]interface{}{"sku": "A-100", "qty": 1},
		map[string]interface{}{"sku": "B-200", "qty": 2},
	}
	b := fingerprintInput()
	b.Properties["items"] = []interface{}{
		map[string]interface{}{"qty": 1, "sku": "A-100"},
		map[string]interface{}{"qty": 2, "sku": "B-200"},
	}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestNewEventValidation(t *testing.T) {
	ws := uuid.New()
	now := time.Now()

	_, err := NewEvent(ws, EventSourceJS, "", nil, nil, now, "")
	assert.Error(t, err)

	_, err = NewEvent(ws, EventSource("carrier_pigeon"), "page_view", nil, nil, now, "")
	assert.Error(t, err)

	_, err = NewEvent(ws, EventSourceJS, "page_view", nil, nil, time.Time{}, "")
	assert.Error(t, err)

	e, err := NewEvent(ws, EventSourceJS, "page_view", nil, nil, now, "")
	assert.NoError(t, err)
	assert.NotEmpty(t, e.DedupeKey)
	assert.Equal(t, ws, e.WorkspaceID)
	assert.NotNil(t, e.Properties)
	assert.NotNil(t, e.Context)
	assert.Nil(t, e.UnifiedUserID)
}
