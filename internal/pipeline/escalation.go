package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/phoneprobe/internal/model"
)

// Decision is the answer of an Escalation to a Blocked outcome.
type Decision int

const (
	// Continue records the Blocked outcome and moves to the next candidate.
	Continue Decision = iota

	// Retry probes the same candidate again.
	Retry

	// Abort stops the run. Results gathered so far are kept.
	Abort
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case Retry:
		return "retry"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Escalation decides what happens after a Blocked classification.
type Escalation interface {
	OnBlocked(ctx context.Context, outcome model.ProbeOutcome) Decision
}

// EscalationFunc adapts a function to Escalation.
type EscalationFunc func(ctx context.Context, outcome model.ProbeOutcome) Decision

// OnBlocked calls f.
func (f EscalationFunc) OnBlocked(ctx context.Context, outcome model.ProbeOutcome) Decision {
	return f(ctx, outcome)
}

// ContinueEscalation always continues.
type ContinueEscalation struct{}

// OnBlocked returns Continue.
func (ContinueEscalation) OnBlocked(context.Context, model.ProbeOutcome) Decision {
	return Continue
}

// Cooler pauses a rate limiter for the whole session.
type Cooler interface {
	Cooldown(d time.Duration)
}

// CooldownEscalation cools the limiter down after every Blocked outcome and
// retries the candidate up to MaxRetries times, then continues with the
// next one. With MaxRetries zero it only cools down.
type CooldownEscalation struct {
	// Limiter is cooled down before the next probe of the session.
	Limiter Cooler

	// Cooldown is passed to Limiter.Cooldown.
	Cooldown time.Duration

	// MaxRetries bounds the retries per candidate.
	MaxRetries int

	// Logger reports retries. Nil means slog.Default().
	Logger *slog.Logger
}

// OnBlocked implements Escalation.
func (e CooldownEscalation) OnBlocked(_ context.Context, outcome model.ProbeOutcome) Decision {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	decision := Retry
	if outcome.Attempt > e.MaxRetries {
		decision = Continue
	}
	logger.Info("blocked, cooling down",
		"candidate", outcome.Candidate.Value,
		"attempt", outcome.Attempt,
		"cooldown", e.Cooldown,
		"next", decision,
	)
	if e.Limiter != nil && e.Cooldown > 0 {
		e.Limiter.Cooldown(e.Cooldown)
	}
	return decision
}
