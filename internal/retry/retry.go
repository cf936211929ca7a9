// Package retry runs an operation under an exponential backoff policy.
//
// Delays follow InitialDelay * 2^attempt (attempt is zero-based), so the default
// policy waits 2s, 4s, 8s, ... between attempts. MaxDelay and Jitter are off by default.
package retry

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 2 * time.Second
)

// Policy configures Do. The zero value behaves like DefaultPolicy with no retryable errors.
type Policy struct {
	Name         string        // Label for log lines
	MaxAttempts  int           // Total attempts including the first one
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // 0 = uncapped
	Jitter       float64       // Extra random fraction of the delay (0.25 = up to +25%), 0 = none

	// Retryable reports whether a failure may be retried. Nil means nothing is retried.
	Retryable func(error) bool

	// Sleep waits between attempts. Nil uses a timer that honors ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the 3 attempts / 2s policy retrying only failures accepted by retryable.
func DefaultPolicy(name string, retryable func(error) bool) Policy {
	return Policy{
		Name:         name,
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Retryable:    retryable,
	}
}

// Delay returns the wait after the given zero-based failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.InitialDelay
	if base <= 0 {
		return 0
	}
	delay := float64(base) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay += delay * p.Jitter * rand.Float64()
	}
	return time.Duration(delay)
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Do calls op until it succeeds, fails with a non-retryable error, or the attempt
// budget is spent. The last error is returned unchanged so callers can inspect it.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.attempts()

	for i := 0; i < attempts; i++ {
		result, err := op(ctx)
		if err == nil {
			if i > 0 {
				log.Printf("[Retry] %s succeeded on attempt %d/%d", p.label(), i+1, attempts)
			}
			return result, nil
		}

		if p.Retryable == nil || !p.Retryable(err) || i == attempts-1 {
			return zero, err
		}

		delay := p.Delay(i)
		log.Printf("[Retry] %s: attempt %d/%d failed (%v), retrying in %v...", p.label(), i+1, attempts, err, delay)
		if err := p.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}
	}

	// Unreachable: the loop returns on the last attempt.
	return zero, fmt.Errorf("%s: no attempts made", p.label())
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
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

func (p Policy) label() string {
	if p.Name == "" {
		return "operation"
	}
	return p.Name
}
