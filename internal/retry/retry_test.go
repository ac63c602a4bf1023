package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func retryableOpts(maxAttempts int) Options {
	return Options{
		MaxAttempts:    maxAttempts,
		BackoffBase:    1 * time.Millisecond,
		RateLimitRetry: 10 * time.Millisecond,
		Classifier:     func(err error) ErrorType { return Retryable },
	}
}

func TestCalculateBackoff(t *testing.T) {
	base := 100 * time.Millisecond

	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{0, 100 * time.Millisecond, 125 * time.Millisecond},
		{1, 200 * time.Millisecond, 250 * time.Millisecond},
		{2, 400 * time.Millisecond, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		backoff := calculateBackoff(base, tt.attempt)
		if backoff < tt.min || backoff > tt.max {
			t.Errorf("attempt %d: got %v, want between %v and %v", tt.attempt, backoff, tt.min, tt.max)
		}
	}
}

func TestDo_RetryThenSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), retryableOpts(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	permanentErr := errors.New("rejected")
	opts := retryableOpts(3)
	opts.Classifier = func(err error) ErrorType { return Permanent }

	calls := 0
	err := Do(context.Background(), opts, func() error {
		calls++
		return permanentErr
	})

	if err != permanentErr {
		t.Errorf("expected the permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_MaxAttemptsExhausted(t *testing.T) {
	failure := errors.New("always fails")
	calls := 0
	err := Do(context.Background(), retryableOpts(3), func() error {
		calls++
		return failure
	})

	if err != failure {
		t.Errorf("expected the last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_RateLimitedWaitsLonger(t *testing.T) {
	opts := retryableOpts(3)
	opts.Classifier = func(err error) ErrorType { return RateLimited }

	calls := 0
	start := time.Now()
	err := Do(context.Background(), opts, func() error {
		calls++
		if calls < 2 {
			return errors.New("rate limited")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected at least the rate limit delay, got %v", elapsed)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := retryableOpts(10)
	opts.BackoffBase = 50 * time.Millisecond

	calls := 0
	err := Do(ctx, opts, func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("keep retrying")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDo_InfiniteModeStopsOnPermanent(t *testing.T) {
	opts := retryableOpts(0)
	opts.Classifier = func(err error) ErrorType {
		if err.Error() == "permanent" {
			return Permanent
		}
		return Retryable
	}

	calls := 0
	err := Do(context.Background(), opts, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return errors.New("permanent")
	})

	if err == nil || err.Error() != "permanent" {
		t.Errorf("expected permanent error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(context.Background(), retryableOpts(3), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
}
