package destination

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

func newWebhookDestination(t *testing.T, url, secret string) *syncjob.Destination {
	t.Helper()
	config := map[string]string{"url": url}
	if secret != "" {
		config["secret"] = secret
	}
	dest, err := syncjob.NewDestination(uuid.New(), syncjob.DestinationWebhook, "crm-webhook", config)
	require.NoError(t, err)
	return dest
}

func newProfileSnapshot() *syncjob.ProfileSnapshot {
	return &syncjob.ProfileSnapshot{
		UserID:        uuid.New(),
		PrimaryEmail:  "jamie@example.com",
		Emails:        []string{"jamie@example.com"},
		IntentScore:   72,
		TopCategory:   "running-shoes",
		LifetimeValue: decimal.NewFromInt(250),
		OrdersCount:   3,
		FirstSeenAt:   time.Now().Add(-48 * time.Hour),
		LastSeenAt:    time.Now(),
	}
}

func TestWebhookAdapter(t *testing.T) {
	t.Run("delivers a signed envelope", func(t *testing.T) {
		var gotBody []byte
		var gotSignature string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotSignature = r.Header.Get("X-Pulse-Signature")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		adapter := NewWebhookAdapter()
		dest := newWebhookDestination(t, server.URL, "topsecret")

		result, err := adapter.UpsertProfile(context.Background(), dest, newProfileSnapshot())

		require.NoError(t, err)
		assert.Equal(t, syncjob.DeliveryDelivered, result.Status)

		var envelope struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(gotBody, &envelope))
		assert.Equal(t, "profile_upsert", envelope.Type)

		mac := hmac.New(sha256.New, []byte("topsecret"))
		mac.Write(gotBody)
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)
	})

	t.Run("429 maps to rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		adapter := NewWebhookAdapter()
		dest := newWebhookDestination(t, server.URL, "")

		result, err := adapter.TrackEvent(context.Background(), dest, &syncjob.TrackSnapshot{
			EventID:   uuid.New(),
			UserID:    uuid.New(),
			Name:      "checkout_started",
			EventTime: time.Now(),
		})

		require.NoError(t, err)
		assert.Equal(t, syncjob.DeliveryRateLimited, result.Status)
	})

	t.Run("4xx maps to rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad payload", http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		adapter := NewWebhookAdapter()
		dest := newWebhookDestination(t, server.URL, "")

		result, err := adapter.UpsertProfile(context.Background(), dest, newProfileSnapshot())

		require.NoError(t, err)
		assert.Equal(t, syncjob.DeliveryRejected, result.Status)
		assert.Contains(t, result.Message, "422")
	})

	t.Run("5xx surfaces as an error for retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		adapter := NewWebhookAdapter()
		dest := newWebhookDestination(t, server.URL, "")

		result, err := adapter.UpsertProfile(context.Background(), dest, newProfileSnapshot())

		assert.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("missing url rejects without a network call", func(t *testing.T) {
		adapter := NewWebhookAdapter()
		dest := newWebhookDestination(t, "", "")
		dest.Config = map[string]string{}

		result, err := adapter.UpsertProfile(context.Background(), dest, newProfileSnapshot())

		require.NoError(t, err)
		assert.Equal(t, syncjob.DeliveryRejected, result.Status)
	})
}

func TestKlaviyoAdapter(t *testing.T) {
	t.Run("sends profile import with api key", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		dest, err := syncjob.NewDestination(uuid.New(), syncjob.DestinationKlaviyo, "klaviyo-main", map[string]string{
			"api_key":  "pk_test",
			"base_url": server.URL,
		})
		require.NoError(t, err)

		adapter := NewKlaviyoAdapter()
		result, err := adapter.UpsertProfile(context.Background(), dest, newProfileSnapshot())

		require.NoError(t, err)
		assert.Equal(t, syncjob.DeliveryDelivered, result.Status)
		assert.Equal(t, "/profile-import/", gotPath)
		assert.Equal(t, "Klaviyo-API-Key pk_test", gotAuth)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(gotBody, &payload))
		data := payload["data"].(map[string]any)
		attributes := data["attributes"].(map[string]any)
		assert.Equal(t, "jamie@example.com", attributes["email"])
	})

	t.Run("profile without email rejects", func(t *testing.T) {
		dest, err := syncjob.NewDestination(uuid.New(), syncjob.DestinationKlaviyo, "klaviyo-main", nil)
		require.NoError(t, err)

		snapshot := newProfileSnapshot()
		snapshot.PrimaryEmail = ""

		adapter := NewKlaviyoAdapter()
		result, err := adapter.UpsertProfile(context.Background(), dest, snapshot)

		require.NoError(t, err)
		assert.Equal(t, syncjob.DeliveryRejected, result.Status)
	})
}

func TestMetaAdapter(t *testing.T) {
	t.Run("hashes identifiers before sending", func(t *testing.T) {
		var gotBody []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		dest, err := syncjob.NewDestination(uuid.New(), syncjob.DestinationMeta, "meta-capi", map[string]string{
			"pixel_id":     "12345",
			"access_token": "token",
			"base_url":     server.URL,
		})
		require.NoError(t, err)

		adapter := NewMetaAdapter()
		result, err := adapter.UpsertProfile(context.Background(), dest, newProfileSnapshot())

		require.NoError(t, err)
		assert.Equal(t, syncjob.DeliveryDelivered, result.Status)

		sum := sha256.Sum256([]byte("jamie@example.com"))
		assert.Contains(t, string(gotBody), hex.EncodeToString(sum[:]))
		assert.NotContains(t, string(gotBody), "jamie@example.com")
	})
}

func TestRegistry(t *testing.T) {
	t.Run("resolves every supported platform", func(t *testing.T) {
		registry := NewDefaultRegistry()
		for _, typ := range []syncjob.DestinationType{
			syncjob.DestinationKlaviyo,
			syncjob.DestinationWebhook,
			syncjob.DestinationGA4,
			syncjob.DestinationMeta,
		} {
			adapter, err := registry.Adapter(typ)
			require.NoError(t, err)
			assert.Equal(t, typ, adapter.Type())
		}
	})

	t.Run("unknown type is an error", func(t *testing.T) {
		registry := NewDefaultRegistry()
		adapter, err := registry.Adapter(syncjob.DestinationType("salesforce"))
		assert.Error(t, err)
		assert.Nil(t, adapter)
	})
}
