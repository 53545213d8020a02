package segment

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/scoring"
)

// Classifier evaluates segment rules against computed traits. It is pure
// and total: no side effects, and a missing or nil traits block evaluates
// as neutral/lowest values instead of erroring.
type Classifier struct{}

// NewClassifier creates a classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// MatchSegments returns the ids of every segment whose rules all match the
// traits. A user may match zero, one, or many segments.
func (c *Classifier) MatchSegments(traits *scoring.ComputedTraits, segments []Segment) []uuid.UUID {
	matched := make([]uuid.UUID, 0, len(segments))
	for i := range segments {
		seg := &segments[i]
		if !seg.Enabled {
			continue
		}
		if c.Matches(traits, seg) {
			matched = append(matched, seg.ID)
		}
	}
	return matched
}

// Matches reports whether ALL of the segment's rules hold for the traits
func (c *Classifier) Matches(traits *scoring.ComputedTraits, seg *Segment) bool {
	for _, rule := range seg.Rules {
		if !matchRule(rule, traits) {
			return false
		}
	}
	return len(seg.Rules) > 0
}

func matchRule(rule Rule, traits *scoring.ComputedTraits) bool {
	if len(rule.Values) == 0 {
		return false
	}
	attr := attributeValue(rule.Attribute, traits)

	switch rule.Operator {
	case OperatorEquals:
		return strings.EqualFold(attr, rule.Values[0])
	case OperatorNotEquals:
		return !strings.EqualFold(attr, rule.Values[0])
	case OperatorIn:
		for _, v := range rule.Values {
			if strings.EqualFold(attr, v) {
				return true
			}
		}
		return false
	case OperatorGreaterThan:
		return compareNumeric(attr, rule.Values[0], func(a, b float64) bool { return a > b })
	case OperatorGreaterOrEq:
		return compareNumeric(attr, rule.Values[0], func(a, b float64) bool { return a >= b })
	case OperatorLessThan:
		return compareNumeric(attr, rule.Values[0], func(a, b float64) bool { return a < b })
	case OperatorLessOrEq:
		return compareNumeric(attr, rule.Values[0], func(a, b float64) bool { return a <= b })
	case OperatorStageAtLeast:
		stage := scoring.FunnelStage(strings.ToLower(rule.Values[0]))
		if !stage.IsValid() {
			return false
		}
		current := scoring.StageVisitor
		if traits != nil {
			current = traits.DropOffStage
		}
		return current.AtLeast(stage)
	default:
		return false
	}
}

// attributeValue resolves a derived-field name to its string form. Absent
// traits yield zero values, keeping evaluation total.
func attributeValue(attribute string, traits *scoring.ComputedTraits) string {
	if traits == nil {
		traits = &scoring.ComputedTraits{DropOffStage: scoring.StageVisitor}
	}
	switch strings.ToLower(attribute) {
	case "intent_score":
		return strconv.Itoa(traits.IntentScore)
	case "frequency_score":
		return strconv.Itoa(traits.FrequencyScore)
	case "depth_score":
		return strconv.Itoa(traits.DepthScore)
	case "recency_days":
		return strconv.Itoa(traits.RecencyDays)
	case "drop_off_stage":
		return string(traits.DropOffStage)
	case "top_category":
		return traits.TopCategory
	case "session_count":
		return strconv.Itoa(traits.SessionCount)
	case "lifetime_value":
		return traits.LifetimeValue.String()
	case "orders_count":
		return strconv.Itoa(traits.OrdersCount)
	default:
		return ""
	}
}

func compareNumeric(attr, cond string, cmp func(a, b float64) bool) bool {
	a, errA := strconv.ParseFloat(attr, 64)
	b, errB := strconv.ParseFloat(cond, 64)
	if errA != nil || errB != nil {
		return false
	}
	return cmp(a, b)
}
