package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/flowline-dev/flowline/internal/core"
)

// RetryPolicy defines retry behavior for step execution.
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // 0.0 to 1.0
	Multiplier   float64 // Exponential factor
}

// DefaultRetryPolicy returns the default step retry policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.2,
		Multiplier:   2.0,
	}
}

// RetryNotifyFunc is called before each retry wait.
type RetryNotifyFunc func(attempt int, err error, delay time.Duration)

// Do runs fn until it succeeds, fails non-retryably, or the attempt budget
// is exhausted. It returns the number of attempts made. Rate-limit errors
// carrying a backoff hint override the computed delay.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error, notify RetryNotifyFunc) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if !core.IsRetryable(err) {
			return attempt, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.delayFor(attempt, err)
		if notify != nil {
			notify(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(delay):
		}
	}

	return p.MaxAttempts, &StepExhaustedError{
		Attempts: p.MaxAttempts,
		LastErr:  lastErr,
	}
}

func (p *RetryPolicy) delayFor(attempt int, err error) time.Duration {
	if hint := backoffHint(err); hint > 0 {
		return hint
	}
	return p.CalculateDelay(attempt)
}

// CalculateDelay computes the exponential backoff delay for an attempt.
func (p *RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.JitterFactor > 0 {
		jitter := delay * p.JitterFactor
		delay += (rand.Float64()*2 - 1) * jitter
	}
	return time.Duration(delay)
}

// backoffHint extracts the provider's retry-after hint, if any.
func backoffHint(err error) time.Duration {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) {
		return 0
	}
	if secs, ok := domErr.Details["retry_after_seconds"].(int); ok {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// StepExhaustedError indicates a step's retry budget ran out. It
// terminates the run as failed and is the only error persisted as the
// run's final error for retryable failures.
type StepExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *StepExhaustedError) Error() string {
	return fmt.Sprintf("step exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *StepExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsStepExhausted checks if an error is a StepExhaustedError.
func IsStepExhausted(err error) bool {
	var exhausted *StepExhaustedError
	return errors.As(err, &exhausted)
}
