// Package retry implements the retry executor (C5): exponential
// backoff with optional jitter around a caller-supplied operation,
// gated by a retriable-error predicate and a cancellable sleep between
// attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Policy is the retry executor's parameter set.
type Policy struct {
	MaxAttempts     int // >= 1
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
	// Retriable reports whether err should trigger another attempt. A
	// nil Retriable treats every non-nil error as retriable.
	Retriable func(err error) bool
}

// ErrTimeout is returned when ctx is cancelled while awaiting or
// between attempts.
var ErrTimeout = errors.New("retry: deadline exceeded")

// delayFor returns the wait between attempt i (1-indexed) and i+1.
func (p Policy) delayFor(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d)
}

// Do runs fn, retrying up to p.MaxAttempts times while p.Retriable(err)
// holds and ctx has not been cancelled. A non-retriable error or a
// cancelled context aborts immediately.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		default:
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		retriable := p.Retriable == nil || p.Retriable(err)
		if !retriable || attempt == maxAttempts {
			return zero, lastErr
		}

		timer := time.NewTimer(p.delayFor(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-timer.C:
		}
	}

	return zero, lastErr
}
