package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"exconnect/pkg/errors"
)

// Limiter paces the calls one exchange client makes.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// Every creates a limiter allowing one request per interval, the way
// exchanges publish their rateLimit in milliseconds between calls.
// A non-positive interval never blocks.
func Every(name string, interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1), name: name}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		name:    name,
	}
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}

// Wait blocks until the rate limiter allows the request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter %s", l.name)
	}
	return nil
}
