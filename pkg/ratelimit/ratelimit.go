// Package ratelimit provides the shared rate-limit budget for all outbound
// provider calls. Every component that talks to an upstream API draws from
// the same token bucket: the batch scheduler, the cascade stages and the
// per-repository commit fetches do not get independent budgets.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/devrank/devrank/pkg/metrics"
)

// Default budget constants. GitHub allows 5000 core requests/hour per token
// and 30 search requests/minute; one token every couple hundred milliseconds
// keeps well under both.
const (
	defaultRequestsPerSecond = 5.0
	defaultBurst             = 5
)

// Limiter gates outbound provider requests against one shared budget.
type Limiter struct {
	bucket *rate.Limiter
}

// Option applies a configuration option to the Limiter.
type Option func(*Limiter)

// WithRate sets the sustained request rate in requests per second.
func WithRate(rps float64) Option {
	return func(l *Limiter) {
		if rps > 0 {
			l.bucket.SetLimit(rate.Limit(rps))
		}
	}
}

// WithBurst sets the burst size of the bucket.
func WithBurst(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.bucket.SetBurst(n)
		}
	}
}

// New creates a Limiter with the default budget, adjusted by options.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		bucket: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	metrics.RecordLimiterWait(float64(time.Since(start).Milliseconds()))
	return nil
}

// Allow reports whether a token is available right now without blocking.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}
