package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func testPolicy(attempts int, waits *[]time.Duration) Policy {
	return Policy{
		MaxAttempts: attempts,
		MinWait:     2 * time.Second,
		MaxWait:     60 * time.Second,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
	}.WithSleep(func(ctx context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return nil
	})
}

// TestDoSucceedsFirstAttempt verifies no sleeping on immediate success.
func TestDoSucceedsFirstAttempt(t *testing.T) {
	var waits []time.Duration
	calls := 0

	value, err := Do(context.Background(), testPolicy(5, &waits), func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if value != "ok" || calls != 1 || len(waits) != 0 {
		t.Fatalf("value=%q calls=%d waits=%v", value, calls, waits)
	}
}

// TestDoRetriesTransientThenSucceeds verifies recovery after transient errors.
func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	var waits []time.Duration
	calls := 0

	value, err := Do(context.Background(), testPolicy(5, &waits), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if value != 42 || calls != 3 {
		t.Fatalf("value=%d calls=%d", value, calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(waits) != len(want) || waits[0] != want[0] || waits[1] != want[1] {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
}

// TestDoExhaustsAttemptsReturnsLastError verifies the original error surfaces.
func TestDoExhaustsAttemptsReturnsLastError(t *testing.T) {
	var waits []time.Duration
	calls := 0

	_, err := Do(context.Background(), testPolicy(3, &waits), func() (int, error) {
		calls++
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want errTransient", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(waits) != 2 {
		t.Fatalf("waits = %v, want 2 sleeps", waits)
	}
}

// TestDoNonRetryablePropagatesImmediately verifies no sleep on permanent errors.
func TestDoNonRetryablePropagatesImmediately(t *testing.T) {
	var waits []time.Duration
	permanent := errors.New("bad request")
	calls := 0

	_, err := Do(context.Background(), testPolicy(5, &waits), func() (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v, want permanent", err)
	}
	if calls != 1 || len(waits) != 0 {
		t.Fatalf("calls=%d waits=%v", calls, waits)
	}
}

// TestBackoffCapsAtMaxWait verifies the exponential schedule is bounded.
func TestBackoffCapsAtMaxWait(t *testing.T) {
	p := Policy{MinWait: 2 * time.Second, MaxWait: 60 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{10, 60 * time.Second},
	}
	for _, tc := range cases {
		if got := p.backoff(tc.attempt); got != tc.want {
			t.Fatalf("backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

// TestDoHonoursContextCancellation verifies sleep interruption.
func TestDoHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 5,
		MinWait:     time.Second,
		MaxWait:     time.Second,
		Retryable:   func(error) bool { return true },
	}.WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := Do(ctx, p, func() (int, error) {
		return 0, errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
