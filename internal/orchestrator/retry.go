package orchestrator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/eventradar/eventradar/internal/provider"
)

// RetryPolicy defines how transient provider failures are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryPolicy returns the standard backoff schedule: 500ms, 1s, 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}
}

// retry executes fn with exponential backoff, retrying only failures the
// provider package marks retryable. Attempts within one retry loop are
// strictly sequential. The attempts count is returned alongside the final
// error so callers can record it.
func retry(ctx context.Context, policy RetryPolicy, fn func() error) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if !provider.IsRetryable(err) {
			return attempt, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return attempt, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoffFor(policy, attempt)):
		}
	}

	return policy.MaxAttempts, fmt.Errorf("max attempts exceeded (%d): %w", policy.MaxAttempts, lastErr)
}

// backoffFor computes the pause before the given (1-based) attempt's retry.
func backoffFor(policy RetryPolicy, attempt int) time.Duration {
	backoff := float64(policy.InitialBackoff) * math.Pow(policy.BackoffFactor, float64(attempt-1))
	if backoff > float64(policy.MaxBackoff) {
		backoff = float64(policy.MaxBackoff)
	}
	return time.Duration(backoff)
}
