// Package retry provides the single bounded-retry utility used by every
// model-call path in the pipeline.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config controls attempt count and backoff shape.
type Config struct {
	MaxAttempts  int           // total attempts, not retries (default 3)
	BaseDelay    time.Duration // first backoff delay (default 500ms)
	MaxDelay     time.Duration // backoff cap (default 10s)
	JitterFactor float64       // +/- fraction of the delay (default 0.25)
}

// Default returns the pipeline's standard retry configuration.
func Default() Config {
	return Config{
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.25,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	return c
}

// Do runs fn up to cfg.MaxAttempts times with exponential backoff between
// attempts. transient decides whether an error is worth retrying; a nil
// transient retries everything. Context cancellation stops the loop.
func Do[T any](ctx context.Context, cfg Config, transient func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if transient != nil && !transient(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-time.After(backoff(attempt, cfg)):
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
		}
	}

	return zero, fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

func backoff(attempt int, cfg Config) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if cfg.JitterFactor > 0 {
		delay += delay * cfg.JitterFactor * (2*rand.Float64() - 1)
	}
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
