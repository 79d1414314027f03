// Package retry wraps an operation in bounded retries with a configurable
// backoff shape. One implementation serves every caller that needs retries;
// the shape and attempt budget live in the Policy, not in the call sites.
package retry

import (
	"context"
	"errors"
	"log"
	"time"
)

// Strategy selects how the delay grows between attempts.
type Strategy int

const (
	Fixed Strategy = iota
	Linear
	Exponential
)

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts int
	Strategy    Strategy
	BaseDelay   time.Duration
	MaxDelay    time.Duration // 0 means unbounded
}

// permanentError stops retries early and unwraps to the original error.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// immediately.
func Permanent(err error) error {
	return &permanentError{err: err}
}

// Do invokes op up to p.MaxAttempts times, sleeping between attempts per the
// policy. The label names the operation in retry logs. The last failure is
// returned once attempts are exhausted. Sleeps respect ctx cancellation.
func Do[T any](ctx context.Context, p Policy, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		delay := p.delay(attempt)
		log.Printf("[retry] %s attempt %d/%d failed: %v (retrying in %s)",
			label, attempt, attempts, err, delay)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}

// delay computes the sleep after the given 1-based failed attempt.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	switch p.Strategy {
	case Linear:
		d = p.BaseDelay * time.Duration(attempt)
	case Exponential:
		d = p.BaseDelay << (attempt - 1)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
