package processor

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
)

// RateLimiter paces batch dispatch.
type RateLimiter struct {
	limiter *rate.Limiter
	log     logger.Logger
}

// NewRateLimiter creates a limiter allowing rps requests per second with
// the given burst. rps <= 0 means unlimited.
func NewRateLimiter(rps float64, burst int, log logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewNop()
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst), log: log}
}

// Wait waits until rate limit allows the operation
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		r.log.Warn("Rate limiter wait failed", logger.Error(err))
		return err
	}
	return nil
}
