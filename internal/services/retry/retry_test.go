package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type flaky struct{}

func (flaky) Error() string   { return "flaky" }
func (flaky) Retryable() bool { return true }

func TestDoRetriesStatusErrorsThenSucceeds(t *testing.T) {
	var slept []time.Duration
	policy := Policy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Sleeper: func(d time.Duration) { slept = append(slept, d) }}

	calls := 0
	err := policy.Do(context.Background(), "demo", func(int) error {
		calls++
		if calls < 3 {
			return &StatusError{Op: "demo", StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("unexpected backoff schedule: %v", slept)
	}
}

func TestDoStopsOnClientError(t *testing.T) {
	policy := Policy{MaxAttempts: 5, Sleeper: func(time.Duration) {}}
	calls := 0
	err := policy.Do(context.Background(), "demo", func(int) error {
		calls++
		return &StatusError{Op: "demo", StatusCode: http.StatusUnauthorized}
	})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestDoHonoursRetryAfterAndRetryableMarker(t *testing.T) {
	var slept []time.Duration
	policy := Policy{MaxAttempts: 3, BaseDelay: 0, MaxDelay: 5 * time.Second, Sleeper: func(d time.Duration) { slept = append(slept, d) }}
	calls := 0
	err := policy.Do(context.Background(), "demo", func(int) error {
		calls++
		switch calls {
		case 1:
			return &StatusError{Op: "demo", StatusCode: http.StatusTooManyRequests, RetryAfter: 30 * time.Second}
		default:
			return flaky{}
		}
	})
	if err == nil {
		t.Fatal("expected exhausted retries to fail")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != 5*time.Second {
		t.Fatalf("expected capped retry-after sleep, got %v", slept)
	}
}

func TestDelayStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, retry := DefaultPolicy().Delay(ctx, flaky{}, 1); retry {
		t.Fatal("expected no retry after cancellation")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := ParseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("unexpected seconds parse: %v %v", d, ok)
	}
	if _, ok := ParseRetryAfter("-1"); ok {
		t.Fatal("expected negative seconds to be rejected")
	}
	if _, ok := ParseRetryAfter("soon"); ok {
		t.Fatal("expected garbage to be rejected")
	}
}
