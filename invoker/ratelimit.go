package invoker

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited bounds the invocation rate of another Invoker.
// The limit is shared by every worker using the same RateLimited value.
type RateLimited struct {
	next    Invoker
	limiter *rate.Limiter
}

var _ Invoker = (*RateLimited)(nil)

// NewRateLimited allows perSecond invocations per second with the given burst.
// A non-positive perSecond returns next unchanged.
func NewRateLimited(next Invoker, perSecond float64, burst int) Invoker {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}

	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Invoke waits for a token, then delegates.
func (r *RateLimited) Invoke(ctx context.Context, function string, payload []byte) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Invoke(ctx, function, payload)
}
