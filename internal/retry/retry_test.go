package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var errQuota = errors.New("Error 429, Message: Resource has been exhausted, Status: RESOURCE_EXHAUSTED")

func isQuota(err error) bool {
	return strings.Contains(err.Error(), "429")
}

// recordingSleep captures requested delays without waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDoRetriesQuotaThenSucceeds(t *testing.T) {
	for n := 1; n <= 4; n++ {
		var delays []time.Duration
		p := DefaultPolicy("test", isQuota)
		p.MaxAttempts = 4
		p.Sleep = recordingSleep(&delays)

		calls := 0
		got, err := Do(context.Background(), p, func(context.Context) (string, error) {
			calls++
			if calls < n {
				return "", errQuota
			}
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if got != "ok" {
			t.Fatalf("n=%d: got %q", n, got)
		}
		if calls != n {
			t.Errorf("n=%d: expected %d calls, got %d", n, n, calls)
		}
		if len(delays) != n-1 {
			t.Fatalf("n=%d: expected %d delays, got %v", n, n-1, delays)
		}
		for i, d := range delays {
			want := DefaultInitialDelay * time.Duration(1<<i)
			if d != want {
				t.Errorf("n=%d: delay %d = %v, want %v", n, i, d, want)
			}
		}
	}
}

func TestDoNonRetryableFailsImmediately(t *testing.T) {
	var delays []time.Duration
	p := DefaultPolicy("test", isQuota)
	p.Sleep = recordingSleep(&delays)

	errBoom := errors.New("connection reset")
	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(delays) != 0 {
		t.Errorf("expected no delays, got %v", delays)
	}
}

func TestDoQuotaOnFinalAttemptPropagates(t *testing.T) {
	var delays []time.Duration
	p := DefaultPolicy("test", isQuota)
	p.Sleep = recordingSleep(&delays)

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errQuota
	})
	if !errors.Is(err, errQuota) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if calls != DefaultMaxAttempts {
		t.Errorf("expected %d calls, got %d", DefaultMaxAttempts, calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) || delays[0] != want[0] || delays[1] != want[1] {
		t.Errorf("delays = %v, want %v", delays, want)
	}
}

func TestDoStopsWhenSleepFails(t *testing.T) {
	p := DefaultPolicy("test", isQuota)
	p.Sleep = func(context.Context, time.Duration) error { return context.Canceled }

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errQuota
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{InitialDelay: 2 * time.Second}
	if got := p.Delay(3); got != 16*time.Second {
		t.Errorf("uncapped Delay(3) = %v", got)
	}

	p.MaxDelay = 5 * time.Second
	if got := p.Delay(3); got != 5*time.Second {
		t.Errorf("capped Delay(3) = %v", got)
	}

	p.Jitter = 0.25
	for i := 0; i < 20; i++ {
		got := p.Delay(0)
		if got < 2*time.Second || got > 2500*time.Millisecond {
			t.Fatalf("jittered Delay(0) = %v out of range", got)
		}
	}
}

func TestZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(context.Context) (int, error) {
		calls++
		return 0, errQuota
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected a single failing call, got calls=%d err=%v", calls, err)
	}
}
