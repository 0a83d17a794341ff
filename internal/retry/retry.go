// Package retry wraps a full connection lifecycle attempt with bounded
// retry and exponential backoff. The unit of retry is the whole attempt:
// a connection that never reaches an open observation before its callback
// graph completes counts as a failure and drives the next attempt.
package retry

import (
	"context"
	"fmt"
	"time"

	"classload/internal/metrics"
)

// Metric signal names. A retry-attempted signal fires on every retry and a
// retry-succeeded signal only when a non-first attempt succeeds, so
// "success on first try" and "success after N retries" stay
// distinguishable in aggregate.
const (
	MetricRetryAttempted = "connection_retry"
	MetricRetrySucceeded = "connection_retry_success"
)

// Config bounds the retry loop.
type Config struct {
	Enabled    bool
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultConfig returns the standard bounds: up to three retries with a
// two second base delay.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
	}
}

// AttemptFunc runs one full connection lifecycle. attempt is 1-based.
type AttemptFunc func(ctx context.Context, attempt int) error

// Run executes attempts until one succeeds or MaxRetries+1 total attempts
// have failed. Attempt n+1 is preceded by a sleep of 2^(n-1)*BaseDelay;
// the first attempt starts immediately.
func Run(ctx context.Context, cfg Config, rec metrics.Recorder, attempt AttemptFunc) error {
	if rec == nil {
		rec = metrics.Discard{}
	}

	var lastErr error
	for i := 0; i <= cfg.MaxRetries; i++ {
		if i > 0 {
			delay := cfg.BaseDelay << (i - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			rec.Record(MetricRetryAttempted, 1)
		}

		if err := attempt(ctx, i+1); err != nil {
			lastErr = err
			continue
		}

		if i > 0 {
			rec.Record(MetricRetrySucceeded, 1)
		}
		return nil
	}

	return fmt.Errorf("all %d connection attempts failed: %w", cfg.MaxRetries+1, lastErr)
}
