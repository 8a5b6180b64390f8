package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client relays freshly created outbox ids to an external delivery
// integration. Relay failures are reported to callers but must never fail the
// operation that created the outbox row.
type Client struct {
	URL     string
	Secret  string
	HTTP    *http.Client
	Limiter *rate.Limiter
	Log     *zap.Logger
}

func New(url, secret string, rps float64, log *zap.Logger) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		URL:     url,
		Secret:  secret,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		Log:     log,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.URL != ""
}

type relayPayload struct {
	Secret    string   `json:"secret"`
	OutboxIDs []string `json:"outbox_ids"`
}

// Relay POSTs {secret, outbox_ids} with a few retries. Any non-2xx response
// or transport error surfaces as an error after retries are exhausted.
func (c *Client) Relay(ctx context.Context, outboxIDs []uuid.UUID) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		return err
	}

	ids := make([]string, 0, len(outboxIDs))
	for _, id := range outboxIDs {
		ids = append(ids, id.String())
	}
	body, err := json.Marshal(relayPayload{Secret: c.Secret, OutboxIDs: ids})
	if err != nil {
		return err
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 15 * time.Second

	err = backoff.Retry(operation, backoff.WithMaxRetries(backoff.WithContext(b, ctx), 3))
	if err != nil {
		c.Log.Warn("webhook relay failed",
			zap.String("url", c.URL),
			zap.Int("outbox_ids", len(ids)),
			zap.Error(err),
		)
	}
	return err
}
