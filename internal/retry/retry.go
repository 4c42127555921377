// Package retry provides exponential backoff with jitter for transient
// failures, used by the store layer when the database is slow to come up.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Config controls backoff behavior.
type Config struct {
	// Attempts is the total number of tries including the first.
	// A value of 1 disables retries. Default: 3.
	Attempts int

	// Initial is the delay before the first retry. Default: 500ms.
	Initial time.Duration

	// Max caps the backoff delay. Default: 10s.
	Max time.Duration

	// Jitter adds random variation as a fraction of the computed delay.
	// Default: 0.25.
	Jitter float64
}

// Default returns the retry configuration used for database connections.
func Default() Config {
	return Config{
		Attempts: 3,
		Initial:  500 * time.Millisecond,
		Max:      10 * time.Second,
		Jitter:   0.25,
	}
}

// Do runs fn up to cfg.Attempts times, doubling the delay between tries.
// Context cancellation stops retries immediately and returns the last error.
func Do(ctx context.Context, cfg Config, op string, fn func(ctx context.Context) error) error {
	cfg = withDefaults(cfg)

	var lastErr error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || attempt >= cfg.Attempts-1 {
			return lastErr
		}

		delay := backoff(attempt, cfg)
		zap.L().Warn("retrying after failure",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func withDefaults(cfg Config) Config {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Initial <= 0 {
		cfg.Initial = 500 * time.Millisecond
	}
	if cfg.Max <= 0 {
		cfg.Max = 10 * time.Second
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return cfg
}

func backoff(attempt int, cfg Config) time.Duration {
	delay := float64(cfg.Initial) * math.Pow(2, float64(attempt))
	if delay > float64(cfg.Max) {
		delay = float64(cfg.Max)
	}
	if cfg.Jitter > 0 {
		spread := delay * cfg.Jitter
		delay += (rand.Float64()*2 - 1) * spread
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
