// Package rest is the one bounded-retry HTTP helper shared by every
// provider adapter. Transient failures (network errors, 5xx, 429) are
// retried a small fixed number of times with exponential backoff; 4xx
// responses are logical failures and surface immediately. Every request
// waits on the shared rate-limit budget first.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/devrank/devrank/pkg/logger"
	"github.com/devrank/devrank/pkg/metrics"
)

// Default configuration constants.
const (
	defaultTimeout  = 10 * time.Second
	defaultRetryMax = 2
)

// Limiter is the slice of pkg/ratelimit the helper needs.
type Limiter interface {
	Wait(ctx context.Context) error
}

type noLimit struct{}

func (noLimit) Wait(_ context.Context) error { return nil }

// StatusError carries a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client issues JSON GET requests for one provider.
type Client struct {
	hc       *http.Client
	limiter  Limiter
	retryMax uint64
	provider string
	log      logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithLimiter attaches the shared rate-limit budget.
func WithLimiter(l Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithRetryMax bounds retries of transient failures per request.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retryMax = uint64(n)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a retrying JSON client for the named provider.
func New(provider string, opts ...Option) *Client {
	c := &Client{
		hc:       &http.Client{Timeout: defaultTimeout},
		limiter:  noLimit{},
		retryMax: defaultRetryMax,
		provider: provider,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named(provider)
	}
	return c
}

// GetJSON fetches rawURL with the given headers and decodes the response
// body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint, rawURL string, headers map[string]string, out any) error {
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			metrics.RecordProviderRequest(c.provider, endpoint, "network_error")
			return fmt.Errorf("fetch %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		metrics.RecordProviderRequest(c.provider, endpoint, fmt.Sprintf("%d", resp.StatusCode))
		metrics.RecordProviderRequestDuration(c.provider, endpoint, float64(time.Since(start).Milliseconds()))

		switch {
		case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
			// Transient: eligible for retry.
			return &StatusError{Provider: c.provider, StatusCode: resp.StatusCode}
		case resp.StatusCode >= http.StatusBadRequest:
			var payload struct {
				Message string `json:"message"`
				Error   string `json:"error"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&payload)
			msg := payload.Message
			if msg == "" {
				msg = payload.Error
			}
			return backoff.Permanent(&StatusError{Provider: c.provider, StatusCode: resp.StatusCode, Message: msg})
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", endpoint, err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retryMax), ctx)
	notify := func(err error, wait time.Duration) {
		metrics.RecordProviderRetry(c.provider, endpoint)
		c.log.Warn(ctx, "retrying transient provider failure",
			logger.String("endpoint", endpoint),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	}
	return backoff.RetryNotify(operation, bo, notify)
}
