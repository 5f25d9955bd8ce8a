package sources

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces upstream requests for one adapter. Burst is fixed at 1 so
// requests are strictly serialized at the configured interval regardless of
// how many aggregation passes share the adapter.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter allowing one request per interval. A
// non-positive interval disables limiting.
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request slot or the context ends.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request could proceed right now, consuming the
// slot if so.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
