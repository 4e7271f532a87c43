// Package ratelimit provides the HTTP client every exchange call goes
// through. Rate-limited responses are retried with deterministic exponential
// backoff; everything else either succeeds or fails immediately.
package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultMaxAttempts bounds the number of physical requests per call.
	DefaultMaxAttempts = 5
	// DefaultBaseBackoff is the delay before the first retry; it doubles per
	// attempt, without jitter.
	DefaultBaseBackoff = 500 * time.Millisecond
)

// ErrRetryBudget is returned when every attempt came back rate-limited.
var ErrRetryBudget = errors.New("ratelimit: retry budget exceeded")

// StatusError is a non-2xx, non-429 response. The body is carried as
// diagnostic detail.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ratelimit: http %d: %s", e.Status, e.Body)
}

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	MaxAttempts int
	BaseBackoff time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client issues JSON POST requests with 429-aware retries.
type Client struct {
	http        *http.Client
	maxAttempts int
	baseBackoff time.Duration
	logger      *slog.Logger
}

// NewClient creates a Client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		http:        cfg.HTTPClient,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		logger:      cfg.Logger.WithGroup("ratelimit"),
	}
}

// PostJSON marshals body, POSTs it to url and decodes a successful response
// into out (skipped when out is nil). 429 responses are retried up to
// MaxAttempts total requests with backoff base*2^attempt; any other non-2xx
// status fails immediately with a *StatusError.
func (c *Client) PostJSON(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("ratelimit: encode request: %w", err)
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("ratelimit: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("ratelimit: %w", err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("ratelimit: read response: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt == c.maxAttempts-1 {
				break
			}
			delay := Backoff(c.baseBackoff, attempt)
			c.logger.Warn("rate limited, backing off",
				slog.String("url", url),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
			)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Status: resp.StatusCode, Body: string(respBody)}
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("ratelimit: decode response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("%w after %d attempts", ErrRetryBudget, c.maxAttempts)
}

// Backoff computes the deterministic delay for a zero-based attempt index:
// base * 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
