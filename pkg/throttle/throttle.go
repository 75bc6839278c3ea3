package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a strict minimum spacing between outbound calls to a
// single upstream provider. Burst is pinned to 1, so with N requests per
// second consecutive grants are never closer than 1/N apart. Each provider
// client owns its own Limiter; instances are not shared.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter builds a limiter for the given request rate. Rates at or below
// zero fall back to one request per second.
func NewLimiter(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}
}

// Throttle blocks until the next grant is due. It never rejects a caller;
// the only error it can return is the context's, when the wait is canceled.
func (l *Limiter) Throttle(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Interval returns the minimum spacing between grants.
func (l *Limiter) Interval() time.Duration {
	limit := l.lim.Limit()
	if limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
