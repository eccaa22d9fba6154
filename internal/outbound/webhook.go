package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/drillgrade/internal/util"
	"github.com/ppiankov/drillgrade/internal/worker"
)

// Webhook posts each message as JSON to a URL, paced by a per-host rate
// limiter
type Webhook struct {
	url        string
	httpClient *http.Client
	limiter    *worker.Limiter
}

// WebhookOptions configures a Webhook
type WebhookOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPProxy         string
	HTTPSProxy        string
	NoProxy           string
}

// NewWebhook creates a webhook sender
func NewWebhook(url string, opts WebhookOptions) *Webhook {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}

	return &Webhook{
		url: url,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy),
			},
		},
		limiter: worker.NewLimiter(opts.RequestsPerSecond, opts.Burst),
	}
}

// Send posts m. Any non-2xx status is an error.
func (w *Webhook) Send(ctx context.Context, m Message) error {
	if err := w.limiter.Wait(ctx, w.url); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", m.ID)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}
	return nil
}
