package destination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

const (
	klaviyoAPIBaseURL  = "https://a.klaviyo.com/api"
	klaviyoAPIRevision = "2024-10-15"
)

// KlaviyoAdapter delivers profiles and events to Klaviyo. The destination
// config carries the private api_key and an optional base_url override for
// testing.
type KlaviyoAdapter struct {
	httpClient *http.Client
}

// NewKlaviyoAdapter creates a new Klaviyo adapter
func NewKlaviyoAdapter() *KlaviyoAdapter {
	return &KlaviyoAdapter{httpClient: newHTTPClient()}
}

// Type returns the destination type this adapter serves
func (a *KlaviyoAdapter) Type() syncjob.DestinationType {
	return syncjob.DestinationKlaviyo
}

// UpsertProfile pushes the profile snapshot through Klaviyo's profile
// import endpoint
func (a *KlaviyoAdapter) UpsertProfile(ctx context.Context, dest *syncjob.Destination, snapshot *syncjob.ProfileSnapshot) (*syncjob.DeliveryResult, error) {
	if snapshot.PrimaryEmail == "" {
		return &syncjob.DeliveryResult{
			Status:  syncjob.DeliveryRejected,
			Message: "klaviyo profiles require an email",
		}, nil
	}

	properties := map[string]any{
		"intent_score":   snapshot.IntentScore,
		"lifetime_value": snapshot.LifetimeValue,
		"orders_count":   snapshot.OrdersCount,
		"first_seen_at":  snapshot.FirstSeenAt,
		"last_seen_at":   snapshot.LastSeenAt,
	}
	if snapshot.DropOffStage != "" {
		properties["drop_off_stage"] = snapshot.DropOffStage
	}
	if snapshot.TopCategory != "" {
		properties["top_category"] = snapshot.TopCategory
	}
	if len(snapshot.Segments) > 0 {
		properties["segments"] = snapshot.Segments
	}
	for k, v := range snapshot.Traits {
		properties[k] = v
	}

	attributes := map[string]any{
		"email":       snapshot.PrimaryEmail,
		"external_id": snapshot.UserID.String(),
		"properties":  properties,
	}
	if len(snapshot.Phones) > 0 {
		attributes["phone_number"] = snapshot.Phones[0]
	}

	body, err := json.Marshal(map[string]any{
		"data": map[string]any{
			"type":       "profile",
			"attributes": attributes,
		},
	})
	if err != nil {
		return nil, err
	}

	return postJSON(ctx, a.httpClient, a.baseURL(dest)+"/profile-import/", a.headers(dest), body)
}

// TrackEvent pushes the event snapshot through Klaviyo's events endpoint
func (a *KlaviyoAdapter) TrackEvent(ctx context.Context, dest *syncjob.Destination, snapshot *syncjob.TrackSnapshot) (*syncjob.DeliveryResult, error) {
	body, err := json.Marshal(map[string]any{
		"data": map[string]any{
			"type": "event",
			"attributes": map[string]any{
				"time":       snapshot.EventTime,
				"unique_id":  snapshot.EventID.String(),
				"properties": snapshot.Properties,
				"metric": map[string]any{
					"data": map[string]any{
						"type":       "metric",
						"attributes": map[string]any{"name": snapshot.Name},
					},
				},
				"profile": map[string]any{
					"data": map[string]any{
						"type":       "profile",
						"attributes": map[string]any{"external_id": snapshot.UserID.String()},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return postJSON(ctx, a.httpClient, a.baseURL(dest)+"/events/", a.headers(dest), body)
}

func (a *KlaviyoAdapter) baseURL(dest *syncjob.Destination) string {
	if override := dest.Config["base_url"]; override != "" {
		return override
	}
	return klaviyoAPIBaseURL
}

func (a *KlaviyoAdapter) headers(dest *syncjob.Destination) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Klaviyo-API-Key %s", dest.Config["api_key"]),
		"Revision":      klaviyoAPIRevision,
	}
}
