package destination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

const ga4CollectBaseURL = "https://www.google-analytics.com/mp/collect"

// GA4Adapter delivers through the Google Analytics 4 Measurement Protocol.
// The destination config carries measurement_id and api_secret.
type GA4Adapter struct {
	httpClient *http.Client
}

// NewGA4Adapter creates a new GA4 adapter
func NewGA4Adapter() *GA4Adapter {
	return &GA4Adapter{httpClient: newHTTPClient()}
}

// Type returns the destination type this adapter serves
func (a *GA4Adapter) Type() syncjob.DestinationType {
	return syncjob.DestinationGA4
}

// UpsertProfile pushes the computed traits as GA4 user properties.
// Measurement Protocol has no standalone profile endpoint, so they ride on
// a profile_update event.
func (a *GA4Adapter) UpsertProfile(ctx context.Context, dest *syncjob.Destination, snapshot *syncjob.ProfileSnapshot) (*syncjob.DeliveryResult, error) {
	userProperties := map[string]any{
		"intent_score":   map[string]any{"value": snapshot.IntentScore},
		"lifetime_value": map[string]any{"value": snapshot.LifetimeValue},
		"orders_count":   map[string]any{"value": snapshot.OrdersCount},
	}
	if snapshot.DropOffStage != "" {
		userProperties["drop_off_stage"] = map[string]any{"value": snapshot.DropOffStage}
	}
	if snapshot.TopCategory != "" {
		userProperties["top_category"] = map[string]any{"value": snapshot.TopCategory}
	}

	body, err := json.Marshal(map[string]any{
		"client_id":       snapshot.UserID.String(),
		"user_properties": userProperties,
		"events": []map[string]any{
			{"name": "profile_update"},
		},
	})
	if err != nil {
		return nil, err
	}

	return postJSON(ctx, a.httpClient, a.collectURL(dest), nil, body)
}

// TrackEvent forwards the event through the Measurement Protocol
func (a *GA4Adapter) TrackEvent(ctx context.Context, dest *syncjob.Destination, snapshot *syncjob.TrackSnapshot) (*syncjob.DeliveryResult, error) {
	body, err := json.Marshal(map[string]any{
		"client_id":            snapshot.UserID.String(),
		"timestamp_micros":     snapshot.EventTime.UnixMicro(),
		"non_personalized_ads": false,
		"events": []map[string]any{
			{
				"name":   snapshot.Name,
				"params": snapshot.Properties,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return postJSON(ctx, a.httpClient, a.collectURL(dest), nil, body)
}

func (a *GA4Adapter) collectURL(dest *syncjob.Destination) string {
	base := dest.Config["base_url"]
	if base == "" {
		base = ga4CollectBaseURL
	}
	return fmt.Sprintf("%s?measurement_id=%s&api_secret=%s",
		base,
		url.QueryEscape(dest.Config["measurement_id"]),
		url.QueryEscape(dest.Config["api_secret"]),
	)
}
