// Package retry provides exponential backoff with jitter for operations
// against unreliable remote dependencies.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy is immutable retry configuration. The total number of attempts made
// on persistent failure is MaxRetries+1.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       time.Duration
}

// RemoteAPIPolicy suits ordinary remote transcription calls.
func RemoteAPIPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       250 * time.Millisecond,
	}
}

// NetworkPolicy suits generic network errors where longer waits help.
func NetworkPolicy() Policy {
	return Policy{
		MaxRetries:   5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       500 * time.Millisecond,
	}
}

// RateLimitPolicy backs off aggressively after rate-limit responses.
func RateLimitPolicy() Policy {
	return Policy{
		MaxRetries:   2,
		InitialDelay: 5 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   3.0,
		Jitter:       time.Second,
	}
}

// PolicyByName resolves a configured policy name, defaulting to remote API.
func PolicyByName(name string) Policy {
	switch name {
	case "network":
		return NetworkPolicy()
	case "rate_limit":
		return RateLimitPolicy()
	default:
		return RemoteAPIPolicy()
	}
}

// Executor re-invokes failing operations according to a Policy. It performs
// no inspection of why an operation failed; retry-worthiness is the caller's
// concern. Cancelling the context aborts immediately without another attempt.
type Executor struct {
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
	randFn func() float64
}

// NewExecutor creates an executor using real timers.
func NewExecutor(policy Policy) *Executor {
	if policy.Multiplier <= 0 {
		policy.Multiplier = 2.0
	}
	return &Executor{
		policy: policy,
		sleep:  sleepContext,
		randFn: rand.Float64,
	}
}

// Policy returns the executor's configuration.
func (e *Executor) Policy() Policy { return e.policy }

// Delay computes the backoff before retrying after attempt n (0-indexed),
// clamped to [0, MaxDelay+Jitter].
func (e *Executor) Delay(attempt int) time.Duration {
	base := float64(e.policy.InitialDelay) * math.Pow(e.policy.Multiplier, float64(attempt))
	if max := float64(e.policy.MaxDelay); base > max {
		base = max
	}

	jitter := 0.0
	if e.policy.Jitter > 0 {
		jitter = (e.randFn()*2 - 1) * float64(e.policy.Jitter)
	}

	delay := time.Duration(base + jitter)
	if delay < 0 {
		return 0
	}
	return delay
}

// Do runs op until it succeeds, the policy is exhausted, or ctx is cancelled.
// The last failure is returned unchanged; cancellation does not count as a
// failure and triggers no further attempt.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= e.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Cancellation during the attempt aborts the retry cycle.
		if ctx.Err() != nil {
			return zero, lastErr
		}
		if attempt == e.policy.MaxRetries {
			break
		}
		if err := e.sleep(ctx, e.Delay(attempt)); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
