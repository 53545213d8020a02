package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecdp/backend/internal/domain/tracking"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func makeEvent(t *testing.T, workspaceID uuid.UUID, name string, props map[string]interface{}, ctx map[string]interface{}, at time.Time) tracking.Event {
	t.Helper()
	ev, err := tracking.NewEvent(workspaceID, tracking.EventSourceJS, name, props, ctx, at, uuid.NewString())
	require.NoError(t, err)
	return *ev
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)
	return engine
}

func TestRecomputeEmptyHistory(t *testing.T) {
	engine := newTestEngine(t)

	traits := engine.Recompute(nil, testNow)

	assert.Equal(t, 0, traits.IntentScore)
	assert.Equal(t, StageVisitor, traits.DropOffStage)
	assert.Equal(t, DefaultPolicy().LookbackDays, traits.RecencyDays)
	assert.True(t, traits.LifetimeValue.IsZero())
	assert.Equal(t, "v1", traits.PolicyVersion)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	engine := newTestEngine(t)
	ws := uuid.New()
	events := []tracking.Event{
		makeEvent(t, ws, "page_view", nil, map[string]interface{}{"session_id": "s1"}, testNow.Add(-48*time.Hour)),
		makeEvent(t, ws, "product_added", map[string]interface{}{"category": "shoes"}, nil, testNow.Add(-24*time.Hour)),
		makeEvent(t, ws, "order_completed", map[string]interface{}{"total": 59.9}, nil, testNow.Add(-2*time.Hour)),
	}

	first := engine.Recompute(events, testNow)
	second := engine.Recompute(events, testNow)

	assert.Equal(t, first, second)
}

func TestRecomputeIntentMonotonicInRecency(t *testing.T) {
	engine := newTestEngine(t)
	ws := uuid.New()

	// Identical single-event histories differing only in how long ago the
	// event happened. A fresher event must never score lower.
	prev := -1
	for _, ageDays := range []int{29, 20, 10, 5, 1} {
		ev := makeEvent(t, ws, "product_viewed", nil, nil, testNow.AddDate(0, 0, -ageDays))
		traits := engine.Recompute([]tracking.Event{ev}, testNow)
		assert.GreaterOrEqual(t, traits.IntentScore, prev, "age %dd", ageDays)
		prev = traits.IntentScore
	}
}

func TestRecomputeDropOffIsDeepestStage(t *testing.T) {
	engine := newTestEngine(t)
	ws := uuid.New()
	events := []tracking.Event{
		makeEvent(t, ws, "page_view", nil, nil, testNow.Add(-5*time.Hour)),
		makeEvent(t, ws, "checkout_started", nil, nil, testNow.Add(-4*time.Hour)),
		makeEvent(t, ws, "page_view", nil, nil, testNow.Add(-1*time.Hour)),
	}

	traits := engine.Recompute(events, testNow)

	// Later shallow activity does not regress the funnel position
	assert.Equal(t, StageCheckout, traits.DropOffStage)
	assert.Equal(t, 100, traits.DepthScore)
}

func TestRecomputeLifetimeValueSpansFullHistory(t *testing.T) {
	engine := newTestEngine(t)
	ws := uuid.New()
	events := []tracking.Event{
		makeEvent(t, ws, "order_completed", map[string]interface{}{"total": 100.0}, nil, testNow.AddDate(0, 0, -400)),
		makeEvent(t, ws, "order_completed", map[string]interface{}{"total": "25.50"}, nil, testNow.Add(-time.Hour)),
	}

	traits := engine.Recompute(events, testNow)

	// The old order is outside the lookback window but still counts toward
	// lifetime aggregates
	assert.Equal(t, 2, traits.OrdersCount)
	assert.True(t, traits.LifetimeValue.Equal(decimal.NewFromFloat(125.5)))
}

func TestRecomputeFrequencySaturates(t *testing.T) {
	engine := newTestEngine(t)
	ws := uuid.New()

	var events []tracking.Event
	for i := 0; i < 40; i++ {
		events = append(events, makeEvent(t, ws, "page_view", nil, nil, testNow.Add(-time.Duration(i)*time.Hour)))
	}

	traits := engine.Recompute(events, testNow)
	assert.Equal(t, 100, traits.FrequencyScore)
}

func TestRecomputeTopCategoryDeterministicTie(t *testing.T) {
	engine := newTestEngine(t)
	ws := uuid.New()
	events := []tracking.Event{
		makeEvent(t, ws, "product_viewed", map[string]interface{}{"category": "shoes"}, nil, testNow.Add(-3*time.Hour)),
		makeEvent(t, ws, "product_viewed", map[string]interface{}{"category": "bags"}, nil, testNow.Add(-2*time.Hour)),
	}

	traits := engine.Recompute(events, testNow)
	assert.Equal(t, "bags", traits.TopCategory)
}

func TestRecomputeCountsDistinctSessions(t *testing.T) {
	engine := newTestEngine(t)
	ws := uuid.New()
	events := []tracking.Event{
		makeEvent(t, ws, "page_view", nil, map[string]interface{}{"session_id": "s1"}, testNow.Add(-3*time.Hour)),
		makeEvent(t, ws, "page_view", nil, map[string]interface{}{"session_id": "s1"}, testNow.Add(-2*time.Hour)),
		makeEvent(t, ws, "page_view", nil, map[string]interface{}{"session_id": "s2"}, testNow.Add(-1*time.Hour)),
	}

	traits := engine.Recompute(events, testNow)
	assert.Equal(t, 2, traits.SessionCount)
}

func TestRecomputeIgnoresFutureEvents(t *testing.T) {
	engine := newTestEngine(t)
	ws := uuid.New()
	events := []tracking.Event{
		makeEvent(t, ws, "order_completed", map[string]interface{}{"total": 10.0}, nil, testNow.Add(time.Hour)),
	}

	traits := engine.Recompute(events, testNow)
	assert.Equal(t, 0, traits.OrdersCount)
	assert.Equal(t, StageVisitor, traits.DropOffStage)
}

func TestPolicyValidation(t *testing.T) {
	p := DefaultPolicy()
	p.RecencyWeight = 50
	_, err := NewEngine(p)
	assert.Error(t, err)

	p = DefaultPolicy()
	p.ShortWindowDays = p.LookbackDays + 1
	_, err = NewEngine(p)
	assert.Error(t, err)
}
