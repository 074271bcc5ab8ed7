package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/flowline-dev/flowline/internal/core"
)

// ProviderConfig configures a single provider adapter.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// BaseProvider holds the HTTP plumbing shared by all vendor adapters.
type BaseProvider struct {
	config ProviderConfig
	client *http.Client
}

// NewBaseProvider creates the shared adapter base.
func NewBaseProvider(cfg ProviderConfig) *BaseProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	return &BaseProvider{
		config: cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Config returns the adapter configuration.
func (b *BaseProvider) Config() ProviderConfig {
	return b.config
}

// DefaultModel resolves the model for a request, falling back to the
// configured default.
func (b *BaseProvider) DefaultModel(requested string) string {
	if requested != "" {
		return requested
	}
	return b.config.Model
}

// PostJSON issues a JSON POST and decodes the response into out. HTTP
// failures are classified into the provider error taxonomy: 429 is
// retryable with a backoff hint, other 4xx are permanent, 5xx and
// transport errors are retryable.
func (b *BaseProvider) PostJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return core.ErrInvalidRequest(b.config.Name, "encoding request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return core.ErrInvalidRequest(b.config.Name, "building request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return core.ErrProviderUnavailable(b.config.Name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return core.ErrProviderUnavailable(b.config.Name, err)
	}

	if err := b.classifyStatus(resp, respBody); err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return core.ErrProviderUnavailable(b.config.Name, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func (b *BaseProvider) classifyStatus(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		derr := core.ErrRateLimited(b.config.Name)
		if after := resp.Header.Get("Retry-After"); after != "" {
			if secs, err := strconv.Atoi(after); err == nil {
				derr = derr.WithDetail("retry_after_seconds", secs)
			}
		}
		return derr
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return core.ErrInvalidRequest(b.config.Name,
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	case resp.StatusCode >= 500:
		return core.ErrProviderUnavailable(b.config.Name,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	default:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
