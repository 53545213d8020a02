package scoring

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pulsecdp/backend/internal/domain/tracking"
)

// ComputedTraits is the derived state block on a unified user. Recompute
// replaces it wholesale and stamps LastComputedAt; it is never partially
// applied.
type ComputedTraits struct {
	IntentScore    int             `json:"intent_score"`
	FrequencyScore int             `json:"frequency_score"`
	DepthScore     int             `json:"depth_score"`
	RecencyDays    int             `json:"recency_days"`
	DropOffStage   FunnelStage     `json:"drop_off_stage"`
	TopCategory    string          `json:"top_category,omitempty"`
	SessionCount   int             `json:"session_count"`
	LifetimeValue  decimal.Decimal `json:"lifetime_value"`
	OrdersCount    int             `json:"orders_count"`
	PolicyVersion  string          `json:"policy_version"`
	LastComputedAt time.Time       `json:"last_computed_at"`
}

// Engine derives behavioral scores from an identity's event history
type Engine struct {
	policy Policy
}

// NewEngine creates a scoring engine with the given policy
func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: policy}, nil
}

// Policy returns the engine's policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Recompute derives ComputedTraits from the user's event history. It is a
// pure function of (events, now): no I/O, idempotent given the same event
// set and reference time. Events must arrive in non-decreasing event_time
// order; later events past the lookback window are ignored. The intent
// score is monotonic in recency: a more recent matching event, other
// factors equal, never lowers it.
func (e *Engine) Recompute(events []tracking.Event, now time.Time) ComputedTraits {
	p := e.policy
	lookbackStart := now.AddDate(0, 0, -p.LookbackDays)
	shortStart := now.AddDate(0, 0, -p.ShortWindowDays)

	traits := ComputedTraits{
		DropOffStage:   StageVisitor,
		LifetimeValue:  decimal.Zero,
		RecencyDays:    p.LookbackDays,
		PolicyVersion:  p.Version,
		LastComputedAt: now,
	}

	var (
		lastEventTime time.Time
		shortCount    int
		categories    = map[string]int{}
		sessions      = map[string]struct{}{}
	)

	for i := range events {
		ev := &events[i]
		if ev.EventTime.After(now) {
			continue
		}

		// Lifetime aggregates span all history, not just the window
		if p.IsOrderEvent(ev.Name) {
			traits.OrdersCount++
			if raw, ok := ev.Properties[p.RevenueProperty]; ok {
				traits.LifetimeValue = traits.LifetimeValue.Add(toDecimal(raw))
			}
		}

		if ev.EventTime.Before(lookbackStart) {
			continue
		}

		traits.DropOffStage = Deeper(traits.DropOffStage, p.StageOf(ev.Name))
		if ev.EventTime.After(lastEventTime) {
			lastEventTime = ev.EventTime
		}
		if !ev.EventTime.Before(shortStart) {
			shortCount++
		}
		if cat := ev.StringProperty(p.CategoryProperty); cat != "" {
			categories[cat]++
		}
		if sid := ev.StringContext(p.SessionContextKey); sid != "" {
			sessions[sid] = struct{}{}
		}
	}

	traits.SessionCount = len(sessions)
	traits.TopCategory = topKey(categories)

	recencyComponent := 0
	if !lastEventTime.IsZero() {
		ageDays := now.Sub(lastEventTime).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		traits.RecencyDays = int(ageDays)
		// linear decay over the lookback window; strictly non-increasing
		// in age so fresher activity never scores lower
		recencyComponent = int(100 * (1 - ageDays/float64(p.LookbackDays)))
		if recencyComponent < 0 {
			recencyComponent = 0
		}
	}

	depthComponent := traits.DropOffStage.Depth() * 100 / MaxStageDepth

	frequencyComponent := shortCount * 100 / p.FrequencyTarget
	if frequencyComponent > 100 {
		frequencyComponent = 100
	}

	traits.FrequencyScore = frequencyComponent
	traits.DepthScore = depthComponent
	traits.IntentScore = (p.RecencyWeight*recencyComponent +
		p.DepthWeight*depthComponent +
		p.FrequencyWeight*frequencyComponent) / 100

	return traits
}

// topKey returns the most frequent key; ties break lexicographically so the
// result is deterministic regardless of map iteration order.
func topKey(counts map[string]int) string {
	best := ""
	bestCount := 0
	for k, c := range counts {
		if c > bestCount || (c == bestCount && (best == "" || k < best)) {
			best = k
			bestCount = c
		}
	}
	return best
}

func toDecimal(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case string:
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return decimal.Zero
}
