package destination

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

const metaGraphBaseURL = "https://graph.facebook.com/v18.0"

// MetaAdapter delivers through the Meta Conversions API. The destination
// config carries pixel_id and access_token. Matching identifiers are
// SHA-256 hashed before they leave the process, as the API requires.
type MetaAdapter struct {
	httpClient *http.Client
}

// NewMetaAdapter creates a new Meta adapter
func NewMetaAdapter() *MetaAdapter {
	return &MetaAdapter{httpClient: newHTTPClient()}
}

// Type returns the destination type this adapter serves
func (a *MetaAdapter) Type() syncjob.DestinationType {
	return syncjob.DestinationMeta
}

// UpsertProfile pushes the profile as a ProfileUpdate conversion event;
// the Conversions API is event-shaped and has no profile store of its own
func (a *MetaAdapter) UpsertProfile(ctx context.Context, dest *syncjob.Destination, snapshot *syncjob.ProfileSnapshot) (*syncjob.DeliveryResult, error) {
	customData := map[string]any{
		"intent_score":   snapshot.IntentScore,
		"lifetime_value": snapshot.LifetimeValue,
		"orders_count":   snapshot.OrdersCount,
	}
	if snapshot.TopCategory != "" {
		customData["content_category"] = snapshot.TopCategory
	}

	return a.send(ctx, dest, map[string]any{
		"event_name":    "ProfileUpdate",
		"event_time":    snapshot.LastSeenAt.Unix(),
		"event_id":      snapshot.UserID.String(),
		"action_source": "system_generated",
		"user_data":     a.userData(snapshot.UserID.String(), snapshot.Emails, snapshot.Phones),
		"custom_data":   customData,
	})
}

// TrackEvent forwards the event as a conversion event
func (a *MetaAdapter) TrackEvent(ctx context.Context, dest *syncjob.Destination, snapshot *syncjob.TrackSnapshot) (*syncjob.DeliveryResult, error) {
	return a.send(ctx, dest, map[string]any{
		"event_name":    snapshot.Name,
		"event_time":    snapshot.EventTime.Unix(),
		"event_id":      snapshot.EventID.String(),
		"action_source": "website",
		"user_data":     a.userData(snapshot.UserID.String(), nil, nil),
		"custom_data":   snapshot.Properties,
	})
}

func (a *MetaAdapter) send(ctx context.Context, dest *syncjob.Destination, event map[string]any) (*syncjob.DeliveryResult, error) {
	body, err := json.Marshal(map[string]any{
		"data": []map[string]any{event},
	})
	if err != nil {
		return nil, err
	}

	base := dest.Config["base_url"]
	if base == "" {
		base = metaGraphBaseURL
	}
	endpoint := fmt.Sprintf("%s/%s/events?access_token=%s",
		base, dest.Config["pixel_id"], url.QueryEscape(dest.Config["access_token"]))

	return postJSON(ctx, a.httpClient, endpoint, nil, body)
}

func (a *MetaAdapter) userData(externalID string, emails, phones []string) map[string]any {
	userData := map[string]any{
		"external_id": []string{hashIdentifier(externalID)},
	}
	if len(emails) > 0 {
		hashed := make([]string, len(emails))
		for i, email := range emails {
			hashed[i] = hashIdentifier(email)
		}
		userData["em"] = hashed
	}
	if len(phones) > 0 {
		hashed := make([]string, len(phones))
		for i, phone := range phones {
			hashed[i] = hashIdentifier(phone)
		}
		userData["ph"] = hashed
	}
	return userData
}

func hashIdentifier(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(sum[:])
}
