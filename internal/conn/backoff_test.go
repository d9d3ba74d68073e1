package conn

import (
	"testing"
	"time"
)

func TestBackoff_Doubling(t *testing.T) {
	b := Backoff{Base: 2 * time.Second, Max: 30 * time.Second, rand: func() float64 { return 0 }}

	// Attempt 1: base
	if d := b.Delay(1); d != 2*time.Second {
		t.Errorf("expected 2s, got %v", d)
	}

	// Attempt 3: 2s * 2^2 = 8s
	if d := b.Delay(3); d != 8*time.Second {
		t.Errorf("expected 8s, got %v", d)
	}

	// Attempt 10: capped at 30s
	if d := b.Delay(10); d != 30*time.Second {
		t.Errorf("expected 30s cap, got %v", d)
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	// Max jitter: delay must stay within [d, 1.1d]
	b := Backoff{Base: time.Second, Max: time.Minute, rand: func() float64 { return 1 }}

	for attempt := 1; attempt <= 6; attempt++ {
		want := time.Second << (attempt - 1)
		got := b.Delay(attempt)
		if got < want || got > want+want/10 {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, got, want, want+want/10)
		}
	}
}

func TestBackoff_MonotonicNonDecreasing(t *testing.T) {
	b := Backoff{Base: 500 * time.Millisecond, Max: 30 * time.Second, rand: func() float64 { return 0 }}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		d := b.Delay(attempt)
		if d < prev {
			t.Errorf("attempt %d: delay %v decreased from %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestBackoff_InvalidAttemptClamped(t *testing.T) {
	b := Backoff{Base: time.Second, Max: time.Minute, rand: func() float64 { return 0 }}
	if d := b.Delay(0); d != time.Second {
		t.Errorf("expected attempt 0 to behave like attempt 1, got %v", d)
	}
}
