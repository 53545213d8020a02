package segment

import (
	"context"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/shared"
)

// RuleOperator is a comparison applied to a computed-trait attribute
type RuleOperator string

const (
	OperatorEquals        RuleOperator = "EQUALS"
	OperatorNotEquals     RuleOperator = "NOT_EQUALS"
	OperatorGreaterThan   RuleOperator = "GREATER_THAN"
	OperatorGreaterOrEq   RuleOperator = "GREATER_OR_EQUAL"
	OperatorLessThan      RuleOperator = "LESS_THAN"
	OperatorLessOrEq      RuleOperator = "LESS_OR_EQUAL"
	OperatorIn            RuleOperator = "IN"
	OperatorStageAtLeast  RuleOperator = "STAGE_AT_LEAST"
)

// Rule is one declarative predicate over ComputedTraits. Attributes are the
// derived field names (intent_score, recency_days, drop_off_stage, ...).
type Rule struct {
	Attribute string       `json:"attribute"`
	Operator  RuleOperator `json:"operator"`
	Values    []string     `json:"values"`
}

// Segment is a declarative membership definition: a user belongs when ALL
// rules match its computed traits. Definitions are external configuration
// owned by the dashboard, not derived state; this component only evaluates
// them.
type Segment struct {
	shared.WorkspaceAggregateRoot
	Key     string
	Name    string
	Rules   []Rule
	Enabled bool
}

// NewSegment creates a segment definition
func NewSegment(workspaceID uuid.UUID, key, name string, rules []Rule) (*Segment, error) {
	if key == "" {
		return nil, shared.NewDomainError("INVALID_SEGMENT", "Segment key cannot be empty")
	}
	if len(rules) == 0 {
		return nil, shared.NewDomainError("INVALID_SEGMENT", "Segment needs at least one rule")
	}
	return &Segment{
		WorkspaceAggregateRoot: shared.NewWorkspaceAggregateRoot(workspaceID),
		Key:                    key,
		Name:                   name,
		Rules:                  rules,
		Enabled:                true,
	}, nil
}

// Repository defines read access to segment definitions and ownership of
// the membership projection
type Repository interface {
	// ListEnabled returns the enabled segment definitions for a workspace
	ListEnabled(ctx context.Context, workspaceID uuid.UUID) ([]Segment, error)

	// Save creates or updates a segment definition
	Save(ctx context.Context, seg *Segment) error

	// ReplaceMemberships atomically replaces a user's segment memberships
	ReplaceMemberships(ctx context.Context, workspaceID, userID uuid.UUID, segmentIDs []uuid.UUID) error

	// ListMemberships returns the segment keys a user currently belongs to
	ListMemberships(ctx context.Context, workspaceID, userID uuid.UUID) ([]string, error)

	// DeleteMemberships drops all memberships for a user (deletion, merge)
	DeleteMemberships(ctx context.Context, workspaceID, userID uuid.UUID) error
}
