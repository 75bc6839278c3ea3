package throttle

import (
	"context"
	"testing"
	"time"
)

func TestThrottleEnforcesMinimumSpacing(t *testing.T) {
	// 20 rps keeps the test fast while still exercising real waits.
	limiter := NewLimiter(20)
	interval := limiter.Interval()
	if interval != 50*time.Millisecond {
		t.Fatalf("expected 50ms interval, got %s", interval)
	}

	const calls = 5
	var grants []time.Time
	for i := 0; i < calls; i++ {
		if err := limiter.Throttle(context.Background()); err != nil {
			t.Fatalf("throttle: %v", err)
		}
		grants = append(grants, time.Now())
	}

	// Allow a small scheduling tolerance below the nominal interval.
	const tolerance = 5 * time.Millisecond
	for i := 1; i < len(grants); i++ {
		gap := grants[i].Sub(grants[i-1])
		if gap < interval-tolerance {
			t.Fatalf("grants %d and %d only %s apart, want >= %s", i-1, i, gap, interval)
		}
	}

	total := grants[len(grants)-1].Sub(grants[0])
	if minTotal := time.Duration(calls-1)*interval - tolerance; total < minTotal {
		t.Fatalf("%d calls completed in %s, want >= %s", calls, total, minTotal)
	}
}

func TestThrottleFirstCallIsImmediate(t *testing.T) {
	limiter := NewLimiter(1)
	start := time.Now()
	if err := limiter.Throttle(context.Background()); err != nil {
		t.Fatalf("throttle: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first grant delayed %s, want immediate", elapsed)
	}
}

func TestThrottleRespectsCanceledContext(t *testing.T) {
	limiter := NewLimiter(0.001)
	if err := limiter.Throttle(context.Background()); err != nil {
		t.Fatalf("first throttle: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Throttle(ctx); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestNewLimiterDefaultsBadRate(t *testing.T) {
	limiter := NewLimiter(0)
	if limiter.Interval() != time.Second {
		t.Fatalf("expected 1s fallback interval, got %s", limiter.Interval())
	}
}
