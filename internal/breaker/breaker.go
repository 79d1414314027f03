// Package breaker implements a three-state circuit breaker whose state
// survives process restarts: every decision reads the persisted record first
// and every transition is written back before or after the protected call.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/recapbot/recapbot/internal/store"
)

// Breaker states as persisted in the state row.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

const (
	DefaultThreshold = 3
	DefaultCooldown  = 30 * time.Minute
)

// ErrOpen is returned by Execute when the breaker rejects the call without
// invoking it. A rejection is not a failure of the protected operation: the
// caller should skip its work, not record an attempt.
var ErrOpen = errors.New("circuit breaker is open")

// StateStore is the slice of the persistent store the breaker needs.
type StateStore interface {
	BreakerState(ctx context.Context) (store.BreakerRecord, error)
	UpdateBreakerState(ctx context.Context, u store.BreakerUpdate) error
	RecordBreakerFailure(ctx context.Context) error
	RecordBreakerSuccess(ctx context.Context) error
}

// Breaker protects a downstream call with the closed/open/half-open state
// machine. It assumes a single caller at a time; the bot's cycle loop is
// serialized, so reads and transitions never interleave.
type Breaker struct {
	store     StateStore
	threshold int
	cooldown  time.Duration
}

// New creates a breaker. Zero threshold or cooldown fall back to the defaults.
func New(st StateStore, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{store: st, threshold: threshold, cooldown: cooldown}
}

// Execute runs op under breaker protection. When the breaker is open and the
// cooldown has not elapsed it returns ErrOpen without invoking op. Otherwise
// op runs and its error, if any, is returned after the failure transition has
// been persisted.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	rec, err := b.store.BreakerState(ctx)
	if err != nil {
		return fmt.Errorf("read breaker state: %w", err)
	}

	state := rec.State
	if state == StateOpen {
		if time.Since(rec.OpenedAt) < b.cooldown {
			return ErrOpen
		}
		// Cooldown elapsed: let one trial request through.
		half := StateHalfOpen
		if err := b.store.UpdateBreakerState(ctx, store.BreakerUpdate{State: &half}); err != nil {
			return fmt.Errorf("transition breaker to half-open: %w", err)
		}
		state = StateHalfOpen
		log.Printf("[breaker] cooldown elapsed, transitioning to half-open for trial request")
	}

	opErr := op(ctx)
	if opErr == nil {
		if state == StateHalfOpen || rec.FailureCount > 0 {
			if err := b.store.RecordBreakerSuccess(ctx); err != nil {
				log.Printf("[breaker] failed to record success: %v", err)
			}
			if state == StateHalfOpen {
				log.Printf("[breaker] trial request succeeded, breaker closed")
			}
		}
		return nil
	}

	b.recordFailure(ctx, state, rec.FailureCount)
	return opErr
}

// recordFailure persists the failure-side transition. Bookkeeping errors are
// logged rather than returned so the operation's own error stays visible;
// the next cycle re-reads the persisted state anyway.
func (b *Breaker) recordFailure(ctx context.Context, state string, priorFailures int) {
	failures := priorFailures + 1
	now := time.Now()

	switch {
	case state == StateHalfOpen:
		// Trial failed: back to open with a fresh cooldown window.
		open := StateOpen
		err := b.store.UpdateBreakerState(ctx, store.BreakerUpdate{
			State: &open, FailureCount: &failures, OpenedAt: &now,
		})
		if err != nil {
			log.Printf("[breaker] failed to reopen breaker: %v", err)
			return
		}
		log.Printf("[breaker] trial request failed, breaker reopened")

	case failures >= b.threshold:
		open := StateOpen
		err := b.store.UpdateBreakerState(ctx, store.BreakerUpdate{
			State: &open, FailureCount: &failures, OpenedAt: &now,
		})
		if err != nil {
			log.Printf("[breaker] failed to open breaker: %v", err)
			return
		}
		log.Printf("[breaker] %d consecutive failures, breaker opened for %s", failures, b.cooldown)

	default:
		if err := b.store.RecordBreakerFailure(ctx); err != nil {
			log.Printf("[breaker] failed to record failure: %v", err)
			return
		}
		log.Printf("[breaker] failure %d/%d recorded", failures, b.threshold)
	}
}
