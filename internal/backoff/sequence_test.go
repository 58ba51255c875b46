package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSequenceFirstValueWithinInitialDelay(t *testing.T) {
	seq := NewSequence(SequenceConfig{
		InitialDelay: 5 * time.Second,
		Float64:      func() float64 { return 0.5 },
	})

	d, ok := seq.Next()
	if !ok {
		t.Fatal("Next() = false on first call, want true")
	}
	if d != 2500*time.Millisecond {
		t.Fatalf("first delay = %v, want %v", d, 2500*time.Millisecond)
	}
}

func TestSequenceGrowsMonotonicallyToMax(t *testing.T) {
	seq := NewSequence(SequenceConfig{
		MinDelay: 1 * time.Second,
		MaxDelay: 8 * time.Second,
		Factor:   2,
		Float64:  func() float64 { return 0 },
	})

	first, _ := seq.Next()
	if first != 0 {
		t.Fatalf("first delay = %v, want 0 (Float64 stubbed to 0)", first)
	}

	var prev time.Duration
	for i := 0; i < 6; i++ {
		d, ok := seq.Next()
		if !ok {
			t.Fatalf("Next() = false at step %d, want true", i)
		}
		if d < prev {
			t.Fatalf("delay decreased: step %d = %v, previous = %v", i, d, prev)
		}
		if d > 8*time.Second {
			t.Fatalf("delay %v exceeds MaxDelay 8s at step %d", d, i)
		}
		prev = d
	}
	if prev != 8*time.Second {
		t.Fatalf("sequence did not settle at MaxDelay, last = %v", prev)
	}

	// Holds at MaxDelay indefinitely.
	for i := 0; i < 3; i++ {
		d, ok := seq.Next()
		if !ok || d != 8*time.Second {
			t.Fatalf("expected steady MaxDelay, got %v ok=%v", d, ok)
		}
	}
}

func TestSequenceMaxAttemptsTerminates(t *testing.T) {
	seq := NewSequence(SequenceConfig{MaxAttempts: 2, Float64: func() float64 { return 0 }})

	if _, ok := seq.Next(); !ok {
		t.Fatal("Next() 1 = false, want true")
	}
	if _, ok := seq.Next(); !ok {
		t.Fatal("Next() 2 = false, want true")
	}
	if _, ok := seq.Next(); ok {
		t.Fatal("Next() 3 = true, want false (MaxAttempts exhausted)")
	}
}

func TestSequenceFreshGeneratorRestartsAtFirstDelay(t *testing.T) {
	cfg := SequenceConfig{InitialDelay: 5 * time.Second, MinDelay: time.Second, MaxDelay: 10 * time.Second, Float64: func() float64 { return 0.2 }}
	seq := NewSequence(cfg)
	seq.Next()
	seq.Next()
	seq.Next()

	// A reconnect chain discards the old Sequence and builds a fresh one;
	// its first delay must again be the uniform-random initial delay, not a
	// continuation of the old chain's growth.
	fresh := NewSequence(cfg)
	d, _ := fresh.Next()
	if d != time.Second {
		t.Fatalf("fresh sequence first delay = %v, want %v", d, time.Second)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{Attempts: 5, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) bool { return true }, nil)

	if err != nil {
		t.Fatalf("Retry() error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	sentinel := errors.New("permanent")
	attempts := 0
	err := Retry(context.Background(), RetryConfig{Attempts: 5, InitialInterval: time.Millisecond}, func() error {
		attempts++
		return sentinel
	}, func(error) bool { return false }, nil)

	if !errors.Is(err, sentinel) {
		t.Fatalf("Retry() error = %v, want wrapping %v", err, sentinel)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (non-retryable should not retry)", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("always fails")
	attempts := 0
	err := Retry(context.Background(), RetryConfig{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}, func() error {
		attempts++
		return sentinel
	}, func(error) bool { return true }, nil)

	if err == nil {
		t.Fatal("Retry() error = nil, want non-nil after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}
