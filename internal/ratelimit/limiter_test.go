package ratelimit

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

// timerTolerance absorbs the gap between Acquire recording its return time
// and the test reading the clock.
const timerTolerance = time.Millisecond

// TestLimiterSpacing tests that successive returns are at least minDelay apart.
func TestLimiterSpacing(t *testing.T) {
	t.Parallel()

	t.Run("without jitter over 100 calls", func(t *testing.T) {
		t.Parallel()

		const minDelay = 4 * time.Millisecond
		l := New(minDelay)
		ctx := context.Background()

		var prev time.Time
		for i := 0; i < 100; i++ {
			if err := l.Acquire(ctx); err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
			now := time.Now()
			if i > 0 {
				if gap := now.Sub(prev); gap < minDelay-timerTolerance {
					t.Fatalf("call %d returned %s after the previous one, want at least %s", i, gap, minDelay)
				}
			}
			prev = now
		}
	})

	t.Run("with jitter over 100 calls", func(t *testing.T) {
		t.Parallel()

		const minDelay = 3 * time.Millisecond
		l := New(minDelay,
			WithJitter(2*time.Millisecond),
			WithRand(rand.New(rand.NewPCG(1, 2))),
		)
		ctx := context.Background()

		var prev time.Time
		for i := 0; i < 100; i++ {
			if err := l.Acquire(ctx); err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
			now := time.Now()
			if i > 0 {
				if gap := now.Sub(prev); gap < minDelay-timerTolerance {
					t.Fatalf("call %d returned %s after the previous one, want at least %s", i, gap, minDelay)
				}
			}
			prev = now
		}
	})
}

// TestLimiterFirstCall tests that the first call does not wait.
func TestLimiterFirstCall(t *testing.T) {
	t.Parallel()

	l := New(time.Hour)
	start := time.Now()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("expected immediate return, waited %s", elapsed)
	}
}

// TestLimiterCancellation tests that a waiting Acquire honors ctx.
func TestLimiterCancellation(t *testing.T) {
	t.Parallel()

	l := New(time.Hour)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := l.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation error, got %v", err)
	}
}

// TestLimiterCooldown tests that Cooldown pushes out the next call.
func TestLimiterCooldown(t *testing.T) {
	t.Parallel()

	l := New(0)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const cooldown = 30 * time.Millisecond
	l.Cooldown(cooldown)
	l.Cooldown(time.Millisecond)

	start := time.Now()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < cooldown-timerTolerance*5 {
		t.Errorf("expected to wait about %s, waited %s", cooldown, elapsed)
	}
}

// TestNewDefaults tests constructor defaults.
func TestNewDefaults(t *testing.T) {
	t.Parallel()

	l := New(-time.Second, WithJitter(-time.Second))
	if l.MinDelay() != 0 {
		t.Errorf("expected negative delay clamped to 0, got %s", l.MinDelay())
	}
	if l.MaxJitter() != 0 {
		t.Errorf("expected negative jitter ignored, got %s", l.MaxJitter())
	}
}
