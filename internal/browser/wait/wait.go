// Package wait gates scenario steps on observable page state. Every wait is a
// polled predicate with a deadline; nothing in the harness sleeps blindly.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bridgecheck/internal/failures"
)

// Waiter polls conditions against one page.
type Waiter struct {
	ev             Evaluator
	poll           time.Duration
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// NewWaiter creates a waiter. poll is the delay between evaluations and
// defaultTimeout applies when a caller passes no timeout.
func NewWaiter(ev Evaluator, poll, defaultTimeout time.Duration, logger *zap.Logger) *Waiter {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Second
	}
	return &Waiter{ev: ev, poll: poll, defaultTimeout: defaultTimeout, logger: logger.Named("wait")}
}

// For blocks until cond holds or timeout elapses. A condition already true
// returns after a single evaluation. Otherwise the returned TimeoutError is
// never produced before timeout, or an earlier deadline on ctx, has elapsed.
// Evaluation errors (for example a navigation replacing the execution
// context) count as "not yet" and are attached to the timeout. Cancelling ctx aborts the wait with ctx's error.
func (w *Waiter) For(ctx context.Context, cond Condition, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = w.defaultTimeout
	}
	start := time.Now()
	var lastErr error

	for attempt := 1; ; attempt++ {
		elapsed := time.Since(start)
		ok, err := w.check(ctx, cond, max(timeout-elapsed, w.poll))
		if err == nil && ok {
			w.logger.Debug("Condition satisfied",
				zap.Stringer("condition", cond),
				zap.Int("attempts", attempt),
				zap.Duration("elapsed", time.Since(start)))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return w.aborted(ctx, cond, timeout, start)
		}
		if err != nil {
			lastErr = err
		}

		elapsed = time.Since(start)
		if elapsed >= timeout {
			return &failures.TimeoutError{Condition: cond.String(), Timeout: timeout, Elapsed: elapsed, LastErr: lastErr}
		}

		timer := time.NewTimer(min(w.poll, timeout-elapsed))
		select {
		case <-ctx.Done():
			timer.Stop()
			return w.aborted(ctx, cond, timeout, start)
		case <-timer.C:
		}
	}
}

// Once evaluates cond a single time, bounded by the default timeout.
func (w *Waiter) Once(ctx context.Context, cond Condition) (bool, error) {
	return w.check(ctx, cond, w.defaultTimeout)
}

func (w *Waiter) check(ctx context.Context, cond Condition, limit time.Duration) (bool, error) {
	checkCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	return cond.Check(checkCtx, w.ev)
}

// aborted reports a wait ended by its parent context. An outer deadline is
// still a timeout, reported against that deadline rather than timeout;
// cancellation is an interrupt.
func (w *Waiter) aborted(ctx context.Context, cond Condition, timeout time.Duration, start time.Time) error {
	ctxErr := ctx.Err()
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		limit := timeout
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, dl.Sub(start))
		}
		return &failures.TimeoutError{Condition: cond.String(), Timeout: limit, Elapsed: time.Since(start), LastErr: ctxErr}
	}
	return fmt.Errorf("waiting for %s: %w", cond, ctxErr)
}
