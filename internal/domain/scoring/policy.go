package scoring

import (
	"github.com/pulsecdp/backend/internal/domain/shared"
)

// Policy is the versioned, operator-tunable scoring configuration. Weights
// and stage mappings are policy data injected at construction, not
// constants: deployments tune them without code changes.
type Policy struct {
	Version string

	// Intent score weights, must sum to 100. Checkout-stage activity
	// dominates through the depth term.
	RecencyWeight   int
	DepthWeight     int
	FrequencyWeight int

	// LookbackDays bounds the history window; ShortWindowDays is the
	// rolling window used for the frequency term.
	LookbackDays    int
	ShortWindowDays int

	// FrequencyTarget is the short-window event count that saturates the
	// frequency term at 100.
	FrequencyTarget int

	// StageEvents maps funnel stages to the event names that signal them.
	// Unmapped events count as visitor activity.
	StageEvents map[FunnelStage][]string

	// OrderEvents are the event names treated as completed orders for
	// lifetime value aggregation; RevenueProperty names the property
	// carrying the order amount.
	OrderEvents     []string
	RevenueProperty string

	// CategoryProperty names the event property used for the top-category
	// distribution; SessionContextKey the context field counted for
	// distinct sessions.
	CategoryProperty  string
	SessionContextKey string
}

// DefaultPolicy returns the stock scoring policy. The concrete event names
// and weights are illustrative defaults, not contract.
func DefaultPolicy() Policy {
	return Policy{
		Version:         "v1",
		RecencyWeight:   40,
		DepthWeight:     35,
		FrequencyWeight: 25,
		LookbackDays:    30,
		ShortWindowDays: 7,
		FrequencyTarget: 20,
		StageEvents: map[FunnelStage][]string{
			StageBrowsing: {"page_view", "product_viewed", "category_viewed"},
			StageEngaged:  {"search", "product_compared", "wishlist_added", "email_signup"},
			StageCart:     {"cart_viewed", "product_added", "product_removed"},
			StageCheckout: {"checkout_started", "payment_info_entered", "checkout_completed", "order_completed"},
		},
		OrderEvents:       []string{"order_completed", "checkout_completed"},
		RevenueProperty:   "total",
		CategoryProperty:  "category",
		SessionContextKey: "session_id",
	}
}

// Validate checks the policy is internally consistent
func (p Policy) Validate() error {
	if p.RecencyWeight+p.DepthWeight+p.FrequencyWeight != 100 {
		return shared.NewDomainError("INVALID_POLICY", "Intent score weights must sum to 100")
	}
	if p.LookbackDays <= 0 || p.ShortWindowDays <= 0 {
		return shared.NewDomainError("INVALID_POLICY", "Scoring windows must be positive")
	}
	if p.ShortWindowDays > p.LookbackDays {
		return shared.NewDomainError("INVALID_POLICY", "Short window cannot exceed lookback window")
	}
	if p.FrequencyTarget <= 0 {
		return shared.NewDomainError("INVALID_POLICY", "Frequency target must be positive")
	}
	return nil
}

// StageOf returns the funnel stage an event name signals
func (p Policy) StageOf(eventName string) FunnelStage {
	for stage, names := range p.StageEvents {
		for _, n := range names {
			if n == eventName {
				return stage
			}
		}
	}
	return StageVisitor
}

// IsOrderEvent reports whether the event name counts as a completed order
func (p Policy) IsOrderEvent(eventName string) bool {
	for _, n := range p.OrderEvents {
		if n == eventName {
			return true
		}
	}
	return false
}
