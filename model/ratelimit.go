package model

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	Model
	limiter *rate.Limiter
}

// WithRateLimit throttles Generate calls on m through limiter. A nil limiter
// returns m unchanged.
func WithRateLimit(m Model, limiter *rate.Limiter) Model {
	if limiter == nil {
		return m
	}
	return &rateLimited{Model: m, limiter: limiter}
}

// NewLimiter returns a limiter admitting rps requests per second with a burst
// of one, or nil when rps is not positive.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Generate waits for the limiter before delegating.
func (r *rateLimited) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if err := r.limiter.Wait(ctx); err != nil {
		respCh := make(chan Response)
		errCh := make(chan error, 1)
		errCh <- fmt.Errorf("rate limit: %w", err)
		close(respCh)
		close(errCh)
		return respCh, errCh
	}
	return r.Model.Generate(ctx, req)
}
