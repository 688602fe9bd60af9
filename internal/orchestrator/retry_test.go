package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventradar/eventradar/internal/provider"
)

func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	attempts, err := retry(context.Background(), fastRetryPolicy(), func() error {
		calls++
		if calls < 3 {
			return &provider.ProviderError{Provider: "mock", Err: errors.New("transient"), Retryable: true}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Errorf("attempts = %d, calls = %d, want 3/3", attempts, calls)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	attempts, err := retry(context.Background(), fastRetryPolicy(), func() error {
		calls++
		return &provider.ProviderError{Provider: "mock", Err: errors.New("still down"), Retryable: true}
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 || calls != 3 {
		t.Errorf("attempts = %d, calls = %d, want 3/3", attempts, calls)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	attempts, err := retry(context.Background(), fastRetryPolicy(), func() error {
		calls++
		return errors.New("terminal")
	})

	if err == nil {
		t.Fatal("expected the terminal error to surface")
	}
	if attempts != 1 || calls != 1 {
		t.Errorf("attempts = %d, calls = %d, want 1/1", attempts, calls)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retry(ctx, fastRetryPolicy(), func() error {
		return &provider.ProviderError{Provider: "mock", Err: errors.New("transient"), Retryable: true}
	})

	if err == nil || !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation to surface, got %v", err)
	}
}

func TestBackoffFor(t *testing.T) {
	policy := RetryPolicy{
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}

	// The schedule doubles: 500ms, 1s, 2s.
	for i, want := range []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second} {
		if got := backoffFor(policy, i+1); got != want {
			t.Errorf("backoffFor(attempt %d) = %v, want %v", i+1, got, want)
		}
	}

	// The cap applies eventually.
	if got := backoffFor(policy, 10); got != policy.MaxBackoff {
		t.Errorf("backoffFor(10) = %v, want cap %v", got, policy.MaxBackoff)
	}
}
