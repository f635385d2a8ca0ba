// Package retry wraps fallible external calls with bounded exponential
// back-off, retrying only failures a caller-supplied predicate marks as
// transient.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy describes one call site's retry behaviour. Immutable once built.
type Policy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration

	// Retryable reports whether an error is worth another attempt.
	// A nil predicate retries nothing.
	Retryable func(error) bool

	Logger *slog.Logger

	// sleep is injectable for tests; nil means real sleeping.
	sleep func(ctx context.Context, d time.Duration) error
}

// WithSleep returns a copy of the policy using the given sleep function.
// Tests use this to observe back-off without waiting.
func (p Policy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = sleep
	return p
}

// Do runs op up to MaxAttempts times. Non-retryable errors propagate
// immediately; after the final attempt the last error is returned unchanged.
func (p Policy) Do(ctx context.Context, op func() error) error {
	_, err := Do(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Do runs op under policy p and returns its value.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := op()
		if err == nil {
			return value, nil
		}
		lastErr = err

		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		wait := p.backoff(attempt)
		p.log().Warn("retry.attempt",
			"attempt", attempt,
			"max_attempts", attempts,
			"wait", wait.String(),
			"error", err,
		)
		if err := p.sleepFor(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// backoff computes min(MaxWait, MinWait * 2^(attempt-1)).
func (p Policy) backoff(attempt int) time.Duration {
	wait := p.MinWait
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= p.MaxWait {
			return p.MaxWait
		}
	}
	if wait > p.MaxWait {
		return p.MaxWait
	}
	return wait
}

func (p Policy) sleepFor(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p Policy) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
