package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fastBackoff = Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, fastBackoff, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Retry(context.Background(), 5, fastBackoff, func(context.Context) error {
		calls++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	boom := errors.New("boom")
	err := Retry(context.Background(), 3, fastBackoff, func(context.Context) error { return boom }, nil)

	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetryExhaustedError, got %T", err)
	}
	if exhausted.Attempts != 3 || !errors.Is(err, boom) {
		t.Fatalf("unexpected exhausted error: %v", err)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 10, Backoff{Initial: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("flaky")
	}, nil)
	if err == nil || calls != 1 {
		t.Fatalf("expected single call and error, got calls=%d err=%v", calls, err)
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}
	if d := b.Delay(1); d != 100*time.Millisecond {
		t.Fatalf("attempt 1: got %s", d)
	}
	if d := b.Delay(3); d != 400*time.Millisecond {
		t.Fatalf("attempt 3: got %s", d)
	}
	if d := b.Delay(20); d != time.Second {
		t.Fatalf("attempt 20: got %s", d)
	}
}
