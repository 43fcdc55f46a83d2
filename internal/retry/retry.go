// Package retry provides an exponential-backoff executor for operations
// against the upstream analytics API.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/insights-engine/internal/logging"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts  int           // Maximum number of attempts including the first
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Ceiling for the backoff delay
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultConfig returns the default retry configuration.
// Pattern: 1s, 2s, 4s, 8s, capped at 30s.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Func is an operation that can be retried. Returning retryable=false
// stops the loop immediately regardless of remaining attempts.
type Func func(ctx context.Context, attempt int) (retryable bool, err error)

// Do executes fn with exponential backoff. It returns nil on the first
// success, the last error after exhausting attempts, or the context error
// if cancelled mid-backoff.
func Do(ctx context.Context, cfg *Config, fn Func) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		retryable, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts": attempt,
				}).Info("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !retryable {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": cfg.MaxAttempts,
			"delay":       delay.String(),
			"error":       err.Error(),
		}).Warn("operation failed, retrying with backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// backoffDelay computes initialDelay * multiplier^(attempt-1), capped
func backoffDelay(cfg *Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
