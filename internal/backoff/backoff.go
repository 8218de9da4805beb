// Package backoff provides a fixed-ladder retry policy with an injectable
// sleeper so retry behavior is testable without real sleeps.
package backoff

import (
	"context"
	"fmt"
	"time"
)

// Sleeper abstracts waiting between retry attempts.
type Sleeper interface {
	// Sleep blocks for d or until the context is cancelled.
	Sleep(ctx context.Context, d time.Duration) error
}

// StdSleeper sleeps on the wall clock.
type StdSleeper struct{}

// Sleep implements Sleeper.
func (StdSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Policy is a fixed sequence of delays. Attempt n waits Delays[n] before
// running, so a leading zero delay means the first attempt is immediate.
// The number of attempts equals len(Delays).
type Policy struct {
	Delays []time.Duration
}

// FixedInterval returns a policy of n attempts spaced interval apart, with
// the first attempt immediate.
func FixedInterval(interval time.Duration, n int) Policy {
	delays := make([]time.Duration, n)
	for i := 1; i < n; i++ {
		delays[i] = interval
	}
	return Policy{Delays: delays}
}

// Retry calls f once per delay in the policy, sleeping first. f returns the
// result, whether the error is retryable, and any error. A non-retryable
// error returns immediately; exhausting the ladder wraps the last error.
func Retry[T any](
	ctx context.Context,
	policy Policy,
	sleeper Sleeper,
	f func(ctx context.Context, attempt int) (T, bool, error),
) (T, error) {
	var zero T
	if len(policy.Delays) == 0 {
		return zero, fmt.Errorf("backoff policy has no attempts")
	}
	var lastErr error
	for attempt, delay := range policy.Delays {
		if err := sleeper.Sleep(ctx, delay); err != nil {
			return zero, err
		}
		result, retryable, err := f(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return zero, err
		}
		lastErr = err
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", len(policy.Delays), lastErr)
}
