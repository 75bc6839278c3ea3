package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/streamatlas/streamatlas-backend/pkg/config"
)

func newTestExecutor(maxRetries int) *Executor {
	return New(config.RetryConfig{MaxRetries: maxRetries, BaseDelay: time.Millisecond})
}

func TestExecuteSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := newTestExecutor(3).Execute(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestExecuteExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	failures := []error{
		errors.New("boom 1"),
		errors.New("boom 2"),
		errors.New("boom 3"),
		errors.New("boom 4"),
	}
	err := newTestExecutor(3).Execute(context.Background(), func() error {
		calls++
		return failures[calls-1]
	})
	if calls != 4 {
		t.Fatalf("expected initial + 3 retries = 4 calls, got %d", calls)
	}
	if !errors.Is(err, failures[3]) {
		t.Fatalf("expected last failure to propagate, got %v", err)
	}
}

func TestExecuteRecoversMidway(t *testing.T) {
	calls := 0
	err := newTestExecutor(3).Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteNotifyReportsEveryRetry(t *testing.T) {
	var attempts []Attempt
	obs := ObserverFunc(func(_ context.Context, attempt Attempt) {
		attempts = append(attempts, attempt)
	})

	failure := errors.New("flaky upstream")
	exec := New(config.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond})
	err := exec.ExecuteNotify(context.Background(), func() error { return failure }, obs)
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}

	if len(attempts) != 2 {
		t.Fatalf("expected 2 retry events, got %d", len(attempts))
	}
	for i, attempt := range attempts {
		if attempt.Number != i+1 {
			t.Fatalf("attempt %d numbered %d", i, attempt.Number)
		}
		if !errors.Is(attempt.Err, failure) {
			t.Fatalf("attempt %d carried error %v", i, attempt.Err)
		}
	}
	// Deterministic doubling: 1ms then 2ms.
	if attempts[0].Delay != time.Millisecond || attempts[1].Delay != 2*time.Millisecond {
		t.Fatalf("unexpected delays: %s, %s", attempts[0].Delay, attempts[1].Delay)
	}
}

func TestExecutePermanentErrorShortCircuits(t *testing.T) {
	calls := 0
	notFound := errors.New("not found upstream")
	err := newTestExecutor(3).Execute(context.Background(), func() error {
		calls++
		return Permanent(notFound)
	})
	if calls != 1 {
		t.Fatalf("expected single call for permanent error, got %d", calls)
	}
	if !errors.Is(err, notFound) {
		t.Fatalf("expected permanent cause, got %v", err)
	}
}

func TestWithConstantDelay(t *testing.T) {
	var delays []time.Duration
	obs := ObserverFunc(func(_ context.Context, attempt Attempt) {
		delays = append(delays, attempt.Delay)
	})

	exec := New(config.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}).WithConstantDelay()
	_ = exec.ExecuteNotify(context.Background(), func() error { return errors.New("nope") }, obs)

	if len(delays) != 2 {
		t.Fatalf("expected 2 delays, got %d", len(delays))
	}
	for i, delay := range delays {
		if delay != time.Millisecond {
			t.Fatalf("delay %d = %s, want constant 1ms", i, delay)
		}
	}
}
