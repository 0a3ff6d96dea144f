// Package ratelimit spaces remote probes so that a search never produces a
// burst of requests against one platform.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum spacing between successive Acquire returns,
// optionally extended by a bounded random jitter.
//
// A Limiter never drops or reorders callers. Concurrent callers are served
// one at a time, but a Limiter is meant to be owned by a single search and
// not shared across searches.
type Limiter struct {
	mu sync.Mutex

	// limiter paces token grants at one per minDelay.
	limiter *rate.Limiter

	// minDelay is the minimum gap between two Acquire returns.
	minDelay time.Duration

	// maxJitter bounds the random extra delay added to each gap.
	maxJitter time.Duration

	// last is when the previous Acquire returned.
	last time.Time

	// notBefore is set by Cooldown.
	notBefore time.Time

	// jitter draws a duration in [0, maxJitter].
	jitter func(max time.Duration) time.Duration

	logger *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithJitter adds a random delay in [0, max] to every gap.
func WithJitter(max time.Duration) Option {
	return func(l *Limiter) {
		if max > 0 {
			l.maxJitter = max
		}
	}
}

// WithRand sets the randomness source used for jitter.
// Tests pass a seeded source to get reproducible delays.
func WithRand(r *rand.Rand) Option {
	return func(l *Limiter) {
		l.jitter = func(max time.Duration) time.Duration {
			return time.Duration(r.Int64N(int64(max) + 1))
		}
	}
}

// WithLogger sets the logger used for delay tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New creates a Limiter with the given minimum spacing.
// A non-positive minDelay disables spacing but still honors Cooldown.
func New(minDelay time.Duration, opts ...Option) *Limiter {
	if minDelay < 0 {
		minDelay = 0
	}

	every := rate.Inf
	if minDelay > 0 {
		every = rate.Every(minDelay)
	}

	l := &Limiter{
		limiter:  rate.NewLimiter(every, 1),
		minDelay: minDelay,
		jitter: func(max time.Duration) time.Duration {
			return time.Duration(rand.Int64N(int64(max) + 1))
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// MinDelay returns the configured minimum spacing.
func (l *Limiter) MinDelay() time.Duration {
	return l.minDelay
}

// MaxJitter returns the configured jitter bound.
func (l *Limiter) MaxJitter() time.Duration {
	return l.maxJitter
}

// Acquire blocks until at least MinDelay plus the drawn jitter has elapsed
// since the previous Acquire returned, and until any cooldown has passed.
// The first call returns immediately unless a cooldown is pending.
//
// The only error is cancellation of ctx while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ratelimit: %w", err)
	}

	var target time.Time
	if !l.last.IsZero() {
		gap := l.minDelay
		if l.maxJitter > 0 {
			gap += l.jitter(l.maxJitter)
		}
		target = l.last.Add(gap)
	}
	if l.notBefore.After(target) {
		target = l.notBefore
	}

	if wait := time.Until(target); wait > 0 {
		l.logger.Debug("rate limiter delaying probe", "delay", wait)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	l.last = time.Now()
	return nil
}

// Cooldown delays the next permitted Acquire until d from now.
// An earlier pending cooldown is extended, never shortened.
func (l *Limiter) Cooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(l.notBefore) {
		l.notBefore = until
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
