package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classload/internal/metrics"
)

var errAttempt = errors.New("attempt failed")

func TestRun_FirstAttemptSucceeds(t *testing.T) {
	rec := metrics.NewMemory()
	attempts := 0

	err := Run(context.Background(), Config{MaxRetries: 3, BaseDelay: time.Millisecond}, rec,
		func(ctx context.Context, attempt int) error {
			attempts++
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Zero(t, rec.Count(MetricRetryAttempted))
	assert.Zero(t, rec.Count(MetricRetrySucceeded))
}

func TestRun_SucceedsAfterRetries(t *testing.T) {
	rec := metrics.NewMemory()
	attempts := 0

	err := Run(context.Background(), Config{MaxRetries: 3, BaseDelay: time.Millisecond}, rec,
		func(ctx context.Context, attempt int) error {
			attempts++
			assert.Equal(t, attempts, attempt)
			if attempt < 3 {
				return errAttempt
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, rec.Count(MetricRetryAttempted))
	assert.Equal(t, 1, rec.Count(MetricRetrySucceeded))
}

func TestRun_AttemptBound(t *testing.T) {
	rec := metrics.NewMemory()
	attempts := 0

	err := Run(context.Background(), Config{MaxRetries: 3, BaseDelay: time.Millisecond}, rec,
		func(ctx context.Context, attempt int) error {
			attempts++
			return errAttempt
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, errAttempt)
	assert.Equal(t, 4, attempts, "maxRetries=3 means at most 4 total attempts")
	assert.Equal(t, 3, rec.Count(MetricRetryAttempted))
	assert.Zero(t, rec.Count(MetricRetrySucceeded))
}

func TestRun_ExponentialBackoff(t *testing.T) {
	base := 20 * time.Millisecond
	var stamps []time.Time

	_ = Run(context.Background(), Config{MaxRetries: 3, BaseDelay: base}, nil,
		func(ctx context.Context, attempt int) error {
			stamps = append(stamps, time.Now())
			return errAttempt
		})

	require.Len(t, stamps, 4)

	// Expected gaps: base, 2*base, 4*base, with scheduling jitter tolerance.
	expected := []time.Duration{base, 2 * base, 4 * base}
	for i, want := range expected {
		gap := stamps[i+1].Sub(stamps[i])
		assert.GreaterOrEqual(t, gap, want, "gap %d too short", i)
		assert.Less(t, gap, want+50*time.Millisecond, "gap %d too long", i)
	}
}

func TestRun_ContextCancelsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{MaxRetries: 3, BaseDelay: time.Hour}, nil,
			func(ctx context.Context, attempt int) error {
				return errAttempt
			})
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
