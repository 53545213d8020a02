package segment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecdp/backend/internal/domain/scoring"
)

func mustSegment(t *testing.T, ws uuid.UUID, key string, rules ...Rule) Segment {
	t.Helper()
	seg, err := NewSegment(ws, key, key, rules)
	require.NoError(t, err)
	return *seg
}

func sampleTraits() *scoring.ComputedTraits {
	return &scoring.ComputedTraits{
		IntentScore:   72,
		RecencyDays:   3,
		DropOffStage:  scoring.StageCart,
		TopCategory:   "shoes",
		SessionCount:  5,
		LifetimeValue: decimal.NewFromFloat(249.90),
		OrdersCount:   2,
	}
}

func TestMatchesAllRulesRequired(t *testing.T) {
	ws := uuid.New()
	c := NewClassifier()

	seg := mustSegment(t, ws, "hot-cart",
		Rule{Attribute: "intent_score", Operator: OperatorGreaterOrEq, Values: []string{"70"}},
		Rule{Attribute: "drop_off_stage", Operator: OperatorStageAtLeast, Values: []string{"cart"}},
	)
	assert.True(t, c.Matches(sampleTraits(), &seg))

	seg.Rules[0].Values = []string{"90"}
	assert.False(t, c.Matches(sampleTraits(), &seg))
}

func TestMatchRuleOperators(t *testing.T) {
	c := NewClassifier()
	ws := uuid.New()

	tests := []struct {
		name  string
		rule  Rule
		match bool
	}{
		{"equals category", Rule{"top_category", OperatorEquals, []string{"Shoes"}}, true},
		{"not equals", Rule{"top_category", OperatorNotEquals, []string{"bags"}}, true},
		{"in list", Rule{"drop_off_stage", OperatorIn, []string{"cart", "checkout"}}, true},
		{"in list miss", Rule{"drop_off_stage", OperatorIn, []string{"visitor"}}, false},
		{"greater than", Rule{"lifetime_value", OperatorGreaterThan, []string{"200"}}, true},
		{"less than", Rule{"recency_days", OperatorLessThan, []string{"7"}}, true},
		{"less or equal boundary", Rule{"orders_count", OperatorLessOrEq, []string{"2"}}, true},
		{"stage at least deeper", Rule{"drop_off_stage", OperatorStageAtLeast, []string{"engaged"}}, true},
		{"stage at least too deep", Rule{"drop_off_stage", OperatorStageAtLeast, []string{"checkout"}}, false},
		{"unknown attribute", Rule{"shoe_size", OperatorEquals, []string{"42"}}, false},
		{"unknown operator", Rule{"intent_score", RuleOperator("LIKE"), []string{"7"}}, false},
		{"empty values", Rule{"intent_score", OperatorEquals, nil}, false},
		{"invalid stage name", Rule{"drop_off_stage", OperatorStageAtLeast, []string{"purchase"}}, false},
		{"non-numeric comparison", Rule{"top_category", OperatorGreaterThan, []string{"10"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := mustSegment(t, ws, "s", tt.rule)
			assert.Equal(t, tt.match, c.Matches(sampleTraits(), &seg))
		})
	}
}

func TestMatchesNilTraitsIsTotal(t *testing.T) {
	c := NewClassifier()
	ws := uuid.New()

	low := mustSegment(t, ws, "dormant",
		Rule{Attribute: "intent_score", Operator: OperatorLessOrEq, Values: []string{"0"}})
	assert.True(t, c.Matches(nil, &low))

	deep := mustSegment(t, ws, "cart",
		Rule{Attribute: "drop_off_stage", Operator: OperatorStageAtLeast, Values: []string{"cart"}})
	assert.False(t, c.Matches(nil, &deep))
}

func TestMatchSegmentsSkipsDisabled(t *testing.T) {
	c := NewClassifier()
	ws := uuid.New()

	hot := mustSegment(t, ws, "hot",
		Rule{Attribute: "intent_score", Operator: OperatorGreaterThan, Values: []string{"50"}})
	off := mustSegment(t, ws, "off",
		Rule{Attribute: "intent_score", Operator: OperatorGreaterThan, Values: []string{"50"}})
	off.Enabled = false
	cold := mustSegment(t, ws, "cold",
		Rule{Attribute: "intent_score", Operator: OperatorLessThan, Values: []string{"10"}})

	matched := c.MatchSegments(sampleTraits(), []Segment{hot, off, cold})
	assert.Equal(t, []uuid.UUID{hot.ID}, matched)
}
