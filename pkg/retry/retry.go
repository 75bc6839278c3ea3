package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/streamatlas/streamatlas-backend/pkg/config"
)

// Attempt describes one failed try that will be retried.
type Attempt struct {
	Number int
	Delay  time.Duration
	Err    error
}

// Observer receives retry events. Implementations must be cheap; they run on
// the retry path between the failure and the backoff sleep.
type Observer interface {
	OnRetry(ctx context.Context, attempt Attempt)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, attempt Attempt)

func (f ObserverFunc) OnRetry(ctx context.Context, attempt Attempt) {
	f(ctx, attempt)
}

// Executor wraps flaky remote calls with bounded exponential backoff. The
// executor retries every error it is given; callers short-circuit
// non-retryable outcomes (e.g. upstream not-found) by returning
// Permanent(err) from the operation.
type Executor struct {
	maxRetries  int
	baseDelay   time.Duration
	exponential bool
}

// New builds an executor from the shared retry configuration.
func New(cfg config.RetryConfig) *Executor {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Executor{
		maxRetries:  maxRetries,
		baseDelay:   baseDelay,
		exponential: true,
	}
}

// WithConstantDelay disables exponential growth; every retry waits baseDelay.
func (e *Executor) WithConstantDelay() *Executor {
	clone := *e
	clone.exponential = false
	return &clone
}

// Permanent marks err as non-retryable; Execute returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Execute invokes op, retrying failures up to maxRetries additional times
// (initial + maxRetries attempts in total). The delay before retry N is
// baseDelay * 2^(N-1) when exponential, baseDelay otherwise. After
// exhaustion the last error is returned unmodified.
func (e *Executor) Execute(ctx context.Context, op func() error) error {
	return e.ExecuteNotify(ctx, op, nil)
}

// ExecuteNotify behaves like Execute and additionally reports every retried
// failure to obs before sleeping.
func (e *Executor) ExecuteNotify(ctx context.Context, op func() error, obs Observer) error {
	sched := &doublingBackOff{base: e.baseDelay, exponential: e.exponential}
	bo := backoff.WithContext(backoff.WithMaxRetries(sched, uint64(e.maxRetries)), ctx)

	attempt := 0
	notify := func(err error, delay time.Duration) {
		attempt++
		if obs != nil {
			obs.OnRetry(ctx, Attempt{Number: attempt, Delay: delay, Err: err})
		}
	}

	return backoff.RetryNotify(op, bo, notify)
}

// doublingBackOff is a deterministic exponential schedule: baseDelay doubled
// per attempt, with no jitter, so retry timing is exactly reproducible.
type doublingBackOff struct {
	base        time.Duration
	exponential bool
	attempt     int
}

func (b *doublingBackOff) NextBackOff() time.Duration {
	delay := b.base
	if b.exponential {
		delay = b.base << b.attempt
	}
	b.attempt++
	return delay
}

func (b *doublingBackOff) Reset() {
	b.attempt = 0
}
