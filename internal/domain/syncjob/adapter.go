package syncjob

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryStatus classifies the adapter's verdict on one delivery attempt
type DeliveryStatus string

const (
	// DeliveryDelivered means the destination accepted the payload
	DeliveryDelivered DeliveryStatus = "delivered"
	// DeliveryRateLimited means the destination asked us to back off;
	// the job retries with backoff
	DeliveryRateLimited DeliveryStatus = "rate_limited"
	// DeliveryRejected means the destination refused the payload
	// permanently; retrying the same bytes cannot succeed
	DeliveryRejected DeliveryStatus = "rejected"
)

// DeliveryResult is the adapter's report for one attempt
type DeliveryResult struct {
	Status  DeliveryStatus
	Message string
}

// ProfileSnapshot is the destination-agnostic profile payload captured at
// enqueue time
type ProfileSnapshot struct {
	UserID        uuid.UUID         `json:"user_id"`
	PrimaryEmail  string            `json:"primary_email,omitempty"`
	Emails        []string          `json:"emails,omitempty"`
	Phones        []string          `json:"phones,omitempty"`
	CustomerIDs   []string          `json:"customer_ids,omitempty"`
	ExternalIDs   map[string]string `json:"external_ids,omitempty"`
	Traits        map[string]any    `json:"traits,omitempty"`
	IntentScore   int               `json:"intent_score"`
	DropOffStage  string            `json:"drop_off_stage,omitempty"`
	TopCategory   string            `json:"top_category,omitempty"`
	LifetimeValue decimal.Decimal   `json:"lifetime_value"`
	OrdersCount   int               `json:"orders_count"`
	Segments      []string          `json:"segments,omitempty"`
	FirstSeenAt   time.Time         `json:"first_seen_at"`
	LastSeenAt    time.Time         `json:"last_seen_at"`
}

// TrackSnapshot is the destination-agnostic event payload. Name carries the
// destination-mapped wire name, not the internal one.
type TrackSnapshot struct {
	EventID    uuid.UUID      `json:"event_id"`
	UserID     uuid.UUID      `json:"user_id"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	EventTime  time.Time      `json:"event_time"`
}

// Adapter is the outbound port a destination family implements. Adapters
// never touch persistence; they translate snapshots to the platform wire
// format and classify the response.
type Adapter interface {
	Type() DestinationType
	UpsertProfile(ctx context.Context, dest *Destination, snapshot *ProfileSnapshot) (*DeliveryResult, error)
	TrackEvent(ctx context.Context, dest *Destination, snapshot *TrackSnapshot) (*DeliveryResult, error)
}

// Registry resolves adapters by destination type
type Registry interface {
	Adapter(typ DestinationType) (Adapter, error)
}
