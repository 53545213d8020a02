package destination

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

const defaultTimeout = 30 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// postJSON sends a JSON body and classifies the response. 2xx is delivered,
// 429 asks us to back off, any other 4xx permanently rejects the payload.
// 5xx and transport failures return an error so the attempt is retried.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte) (*syncjob.DeliveryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return classifyResponse(resp)
}

func classifyResponse(resp *http.Response) (*syncjob.DeliveryResult, error) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &syncjob.DeliveryResult{Status: syncjob.DeliveryDelivered}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &syncjob.DeliveryResult{
			Status:  syncjob.DeliveryRateLimited,
			Message: "destination asked to back off",
		}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &syncjob.DeliveryResult{
			Status:  syncjob.DeliveryRejected,
			Message: fmt.Sprintf("rejected with status %d: %s", resp.StatusCode, readBodyPrefix(resp.Body)),
		}, nil
	default:
		return nil, fmt.Errorf("destination returned status %d: %s", resp.StatusCode, readBodyPrefix(resp.Body))
	}
}

// readBodyPrefix keeps error messages bounded
func readBodyPrefix(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return string(raw)
}
