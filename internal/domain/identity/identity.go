package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/tracking"
)

// IdentifierType classifies an observed identifier
type IdentifierType string

const (
	IdentifierTypeEmail      IdentifierType = "email"
	IdentifierTypePhone      IdentifierType = "phone"
	IdentifierTypeCustomerID IdentifierType = "customer_id"
	IdentifierTypeAnonymous  IdentifierType = "anonymous_id"
)

// IsValid returns true if the identifier type is known
func (t IdentifierType) IsValid() bool {
	switch t {
	case IdentifierTypeEmail, IdentifierTypePhone, IdentifierTypeCustomerID, IdentifierTypeAnonymous:
		return true
	default:
		return false
	}
}

// Baseline confidence per identifier type. Malformed values are kept at
// reduced confidence instead of rejected: identity material is not
// re-derivable later.
const (
	confidenceCustomerID = 1.0
	confidenceEmail      = 0.95
	confidencePhone      = 0.9
	confidenceAnonymous  = 0.5
	confidenceMalformed  = 0.2
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{5,}$`)
)

// Identity is a single observed identifier pointing at a unified user.
// The (type, value) pair is unique within a workspace and an identity never
// has more than one owner at a time.
type Identity struct {
	shared.WorkspaceAggregateRoot
	Type          IdentifierType
	Value         string
	Confidence    float64
	Source        tracking.EventSource
	UnifiedUserID uuid.UUID
}

// NewIdentity creates an identity from a first observation. Values failing
// format validation are stored at reduced confidence, never rejected.
func NewIdentity(workspaceID uuid.UUID, typ IdentifierType, value string, source tracking.EventSource, ownerID uuid.UUID) (*Identity, error) {
	if !typ.IsValid() {
		return nil, shared.NewDomainError("INVALID_IDENTIFIER_TYPE", "Unknown identifier type")
	}
	value = NormalizeValue(typ, value)
	if value == "" {
		return nil, shared.NewDomainError("INVALID_IDENTIFIER", "Identifier value cannot be empty")
	}

	return &Identity{
		WorkspaceAggregateRoot: shared.NewWorkspaceAggregateRoot(workspaceID),
		Type:                   typ,
		Value:                  value,
		Confidence:             baselineConfidence(typ, value),
		Source:                 source,
		UnifiedUserID:          ownerID,
	}, nil
}

// Reobserve updates confidence and source on a repeat observation of the
// same (type, value) pair; it never duplicates the identity.
func (i *Identity) Reobserve(source tracking.EventSource) {
	base := baselineConfidence(i.Type, i.Value)
	if base > i.Confidence {
		i.Confidence = base
	} else if i.Confidence < 1.0 {
		// repeated sightings nudge confidence toward certainty
		i.Confidence += (1.0 - i.Confidence) * 0.1
	}
	i.Source = source
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
}

// Reassign points the identity at a new owning unified user (merge path)
func (i *Identity) Reassign(ownerID uuid.UUID) {
	i.UnifiedUserID = ownerID
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
}

// WellFormed reports whether the value passes format validation for its type
func (i *Identity) WellFormed() bool {
	return wellFormed(i.Type, i.Value)
}

// NormalizeValue canonicalizes an identifier value for its type
func NormalizeValue(typ IdentifierType, value string) string {
	value = strings.TrimSpace(value)
	if typ == IdentifierTypeEmail {
		return strings.ToLower(value)
	}
	return value
}

func baselineConfidence(typ IdentifierType, value string) float64 {
	if !wellFormed(typ, value) {
		return confidenceMalformed
	}
	switch typ {
	case IdentifierTypeCustomerID:
		return confidenceCustomerID
	case IdentifierTypeEmail:
		return confidenceEmail
	case IdentifierTypePhone:
		return confidencePhone
	default:
		return confidenceAnonymous
	}
}

func wellFormed(typ IdentifierType, value string) bool {
	switch typ {
	case IdentifierTypeEmail:
		return emailPattern.MatchString(value)
	case IdentifierTypePhone:
		return phonePattern.MatchString(value)
	default:
		return value != ""
	}
}

// ObservedIdentifier is an identifier extracted from a single event
type ObservedIdentifier struct {
	Type  IdentifierType
	Value string
}

// ExtractIdentifiers pulls resolvable identifiers out of an event's context
// and properties. The anonymous id lives in context (set by the JS pixel);
// email, phone and customer id appear in either bag when the source knows
// them. Returned values are normalized; duplicates are collapsed.
func ExtractIdentifiers(e *tracking.Event) []ObservedIdentifier {
	lookup := func(key string) string {
		if v := e.StringContext(key); v != "" {
			return v
		}
		return e.StringProperty(key)
	}

	candidates := []ObservedIdentifier{
		{IdentifierTypeAnonymous, lookup("anonymous_id")},
		{IdentifierTypeEmail, lookup("email")},
		{IdentifierTypePhone, lookup("phone")},
		{IdentifierTypeCustomerID, lookup("customer_id")},
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]ObservedIdentifier, 0, len(candidates))
	for _, c := range candidates {
		value := NormalizeValue(c.Type, c.Value)
		if value == "" {
			continue
		}
		key := string(c.Type) + "\x00" + value
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ObservedIdentifier{Type: c.Type, Value: value})
	}
	return out
}
