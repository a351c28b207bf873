package api

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures how transport and timeout failures are retried.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts; 1 disables retries.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func (r RetryConfig) normalized() RetryConfig {
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	if r.InitialInterval <= 0 {
		r.InitialInterval = 500 * time.Millisecond
	}
	if r.MaxInterval < r.InitialInterval {
		r.MaxInterval = r.InitialInterval
	}
	if r.Multiplier < 1 {
		r.Multiplier = 1
	}
	return r
}

// backoff returns the delay before retry number attempt (0-based) using
// exponential growth capped at MaxInterval with jitter in [0.75, 1.25).
func (r RetryConfig) backoff(attempt int) time.Duration {
	delay := float64(r.InitialInterval)
	for i := 0; i < attempt; i++ {
		delay *= r.Multiplier
	}
	if delay > float64(r.MaxInterval) {
		delay = float64(r.MaxInterval)
	}
	jitter := rand.Float64() * delay * 0.5
	return time.Duration(delay*0.75 + jitter)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
