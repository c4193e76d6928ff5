// Package retry wraps outbound calls with bounded exponential backoff.
//
// A Policy is applied uniformly around every call:
//
//	p := retry.DefaultPolicy(xrayclient.IsTransient)
//	err := p.Do(ctx, func(ctx context.Context) error {
//		return callPanel(ctx)
//	})
//
// Delays grow as BaseDelay * Multiplier^(attempt-1), capped at MaxDelay. With
// full jitter the actual delay is uniform in [0, delay), which spreads retries
// of calls that failed at the same moment.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"xui-fleet/internal/constants"
)

// Policy describes how an operation is retried
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// Jitter enables full jitter on every delay
	Jitter bool
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of attempt number next
	OnRetry func(next int, err error, delay time.Duration)
}

// DefaultPolicy returns three attempts with jittered backoff from 500ms to 5s
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: constants.RetryMaxAttempts,
		BaseDelay:   constants.RetryBaseDelay * time.Millisecond,
		MaxDelay:    constants.RetryMaxDelay * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      true,
		Retryable:   retryable,
	}
}

// Backoff returns the delay before the given attempt (attempt 2 is the first retry)
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 2 || p.BaseDelay <= 0 {
		return 0
	}

	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt-2))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	d := time.Duration(delay)
	if p.Jitter && d > 0 {
		d = time.Duration(rand.Int64N(int64(d)))
	}
	return d
}

// Do runs fn until it succeeds, returns a non retryable error, or the attempts
// are used up. The last error is returned as is.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for operations that produce a result
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := p.Backoff(attempt)
			if p.OnRetry != nil {
				p.OnRetry(attempt, err, delay)
			}
			if waitErr := sleep(ctx, delay); waitErr != nil {
				return result, waitErr
			}
		}

		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return result, err
		}
	}

	return result, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
