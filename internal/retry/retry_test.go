package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestExecutor(policy Policy, sleeps *[]time.Duration) *Executor {
	e := NewExecutor(policy)
	e.randFn = func() float64 { return 0.5 }
	e.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return e
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	policies := map[string]Policy{
		"remote_api": RemoteAPIPolicy(),
		"network":    NetworkPolicy(),
		"rate_limit": RateLimitPolicy(),
	}

	for name, policy := range policies {
		policy := policy
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var sleeps []time.Duration
			exec := newTestExecutor(policy, &sleeps)

			attempts := 0
			wantErr := errors.New("persistent failure")
			_, err := Do(context.Background(), exec, func(context.Context) (string, error) {
				attempts++
				return "", wantErr
			})

			if !errors.Is(err, wantErr) {
				t.Fatalf("expected last failure unchanged, got %v", err)
			}
			if attempts != policy.MaxRetries+1 {
				t.Fatalf("expected %d attempts, got %d", policy.MaxRetries+1, attempts)
			}
			if len(sleeps) != policy.MaxRetries {
				t.Fatalf("expected %d delays (none after final attempt), got %d", policy.MaxRetries, len(sleeps))
			}
		})
	}
}

func TestDoSuccessShortCircuits(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	exec := newTestExecutor(RemoteAPIPolicy(), &sleeps)

	attempts := 0
	got, err := Do(context.Background(), exec, func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("unexpected result: %d", got)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 delays, got %d", len(sleeps))
	}
}

func TestDelayBounds(t *testing.T) {
	t.Parallel()

	policy := RemoteAPIPolicy()
	for _, bias := range []float64{0, 0.25, 0.5, 0.75, 1} {
		exec := NewExecutor(policy)
		exec.randFn = func() float64 { return bias }
		for attempt := 0; attempt < 12; attempt++ {
			d := exec.Delay(attempt)
			if d < 0 {
				t.Fatalf("negative delay %v at attempt %d", d, attempt)
			}
			if d > policy.MaxDelay+policy.Jitter {
				t.Fatalf("delay %v exceeds cap at attempt %d", d, attempt)
			}
		}
	}
}

func TestDelayGrowsThenCaps(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(Policy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     400 * time.Millisecond,
		Multiplier:   2.0,
	})
	exec.randFn = func() float64 { return 0.5 }

	if got := exec.Delay(0); got != 100*time.Millisecond {
		t.Fatalf("unexpected first delay: %v", got)
	}
	if got := exec.Delay(1); got != 200*time.Millisecond {
		t.Fatalf("unexpected second delay: %v", got)
	}
	if got := exec.Delay(5); got != 400*time.Millisecond {
		t.Fatalf("expected capped delay, got %v", got)
	}
}

func TestDoCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(RemoteAPIPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := Do(ctx, exec, func(context.Context) (string, error) {
		attempts++
		return "", errors.New("should not run")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected no attempts after cancellation, got %d", attempts)
	}
}

func TestDoCancellationAbortsRetryCycle(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	exec := newTestExecutor(RemoteAPIPolicy(), &sleeps)

	ctx, cancel := context.WithCancel(context.Background())
	wantErr := errors.New("failure before cancel")

	attempts := 0
	_, err := Do(ctx, exec, func(context.Context) (string, error) {
		attempts++
		cancel()
		return "", wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last failure, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("cancellation must not trigger another attempt, got %d attempts", attempts)
	}
	if len(sleeps) != 0 {
		t.Fatalf("expected no delay after cancellation, got %d", len(sleeps))
	}
}

func TestPolicyByName(t *testing.T) {
	t.Parallel()

	if got := PolicyByName("network"); got != NetworkPolicy() {
		t.Fatalf("unexpected network policy: %+v", got)
	}
	if got := PolicyByName("rate_limit"); got != RateLimitPolicy() {
		t.Fatalf("unexpected rate limit policy: %+v", got)
	}
	if got := PolicyByName("unknown"); got != RemoteAPIPolicy() {
		t.Fatalf("expected remote API fallback, got %+v", got)
	}
}
