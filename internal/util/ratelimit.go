package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a single-token bucket refilled at a fixed rate. A limiter
// built with a non-positive rate never blocks.
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	tokens   float64
	lastTime time.Time
}

// NewRateLimiter allows perMinute operations per minute, the first one
// immediately.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		rate:     float64(perMinute) / 60.0,
		tokens:   1,
		lastTime: time.Now(),
	}
}

// reserve takes a token if one is available, otherwise it reports how long
// until the next one.
func (rl *RateLimiter) reserve(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = min(1, rl.tokens+now.Sub(rl.lastTime).Seconds()*rl.rate)
	rl.lastTime = now
	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	return time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rl.rate <= 0 {
		return nil
	}
	for {
		wait := rl.reserve(time.Now())
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
