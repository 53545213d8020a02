package destination

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

// WebhookAdapter posts snapshots as-is to a customer-owned endpoint. The
// destination config carries the url and an optional signing secret; when
// set, every request is signed with HMAC-SHA256 over the body.
type WebhookAdapter struct {
	httpClient *http.Client
}

// NewWebhookAdapter creates a new webhook adapter
func NewWebhookAdapter() *WebhookAdapter {
	return &WebhookAdapter{httpClient: newHTTPClient()}
}

// Type returns the destination type this adapter serves
func (a *WebhookAdapter) Type() syncjob.DestinationType {
	return syncjob.DestinationWebhook
}

// UpsertProfile delivers the profile snapshot wrapped in a typed envelope
func (a *WebhookAdapter) UpsertProfile(ctx context.Context, dest *syncjob.Destination, snapshot *syncjob.ProfileSnapshot) (*syncjob.DeliveryResult, error) {
	return a.send(ctx, dest, "profile_upsert", snapshot)
}

// TrackEvent delivers the event snapshot wrapped in a typed envelope
func (a *WebhookAdapter) TrackEvent(ctx context.Context, dest *syncjob.Destination, snapshot *syncjob.TrackSnapshot) (*syncjob.DeliveryResult, error) {
	return a.send(ctx, dest, "event_track", snapshot)
}

func (a *WebhookAdapter) send(ctx context.Context, dest *syncjob.Destination, kind string, payload any) (*syncjob.DeliveryResult, error) {
	url := dest.Config["url"]
	if url == "" {
		return &syncjob.DeliveryResult{
			Status:  syncjob.DeliveryRejected,
			Message: "webhook destination has no url configured",
		}, nil
	}

	body, err := json.Marshal(map[string]any{
		"type": kind,
		"data": payload,
	})
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if secret := dest.Config["secret"]; secret != "" {
		headers["X-Pulse-Signature"] = sign(secret, body)
	}

	return postJSON(ctx, a.httpClient, url, headers, body)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
