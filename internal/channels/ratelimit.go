package channels

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter bounds outbound sends per channel. A thin wrapper over
// x/time/rate with a burst of one: gateways meter per message, so
// bursts above the steady rate just trade 429s now for 429s later.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter creates a limiter allowing ratePerSec sends per second.
func NewLimiter(ratePerSec float64) *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Limit(ratePerSec), 1)}
}

// Wait blocks until a send is permitted or ctx is canceled.
func (r *Limiter) Wait(ctx context.Context) error {
	return r.l.Wait(ctx)
}
