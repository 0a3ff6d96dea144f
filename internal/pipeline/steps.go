package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/phoneprobe/internal/aggregate"
	"github.com/nao1215/phoneprobe/internal/candidate"
	"github.com/nao1215/phoneprobe/internal/fetch"
	"github.com/nao1215/phoneprobe/internal/model"
)

// Generator derives candidates from a phone number.
type Generator interface {
	GenerateFrom(target model.PhoneNumber) ([]model.Candidate, error)
}

// Prober fetches and classifies one candidate.
type Prober interface {
	Probe(ctx context.Context, cand model.Candidate, attempt int) (model.ProbeOutcome, error)
}

// Extractor builds the profile record of a Found outcome.
type Extractor interface {
	Extract(outcome model.ProbeOutcome) model.ProfileRecord
}

// ReadyStep waits for the session provider before anything is probed.
type ReadyStep struct {
	provider fetch.SessionProvider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewReadyStep creates a ReadyStep. A zero timeout lets the provider pick
// its own default.
func NewReadyStep(provider fetch.SessionProvider, timeout time.Duration, logger *slog.Logger) *ReadyStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadyStep{provider: provider, timeout: timeout, logger: logger}
}

// Name returns the step name.
func (s *ReadyStep) Name() string {
	return "ready"
}

// Do blocks until the provider is ready. Any failure is a
// SessionUnavailableError.
func (s *ReadyStep) Do(ctx context.Context, session *model.SearchSession) error {
	s.logger.Debug("waiting for session provider", "timeout", s.timeout)
	if err := s.provider.EnsureReady(ctx, s.timeout); err != nil {
		var unavailable *model.SessionUnavailableError
		if !errors.As(err, &unavailable) {
			err = &model.SessionUnavailableError{Provider: "session", Timeout: s.timeout, Err: err}
		}
		return err
	}
	return session.Transition(model.StateReady)
}

// GenerateStep derives the candidates of the session target.
type GenerateStep struct {
	generator Generator
	logger    *slog.Logger
}

// NewGenerateStep creates a GenerateStep.
func NewGenerateStep(generator Generator, logger *slog.Logger) *GenerateStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateStep{generator: generator, logger: logger}
}

// Name returns the step name.
func (s *GenerateStep) Name() string {
	return "generate"
}

// Do fills session.Candidates. An InvalidInputError aborts the session.
func (s *GenerateStep) Do(_ context.Context, session *model.SearchSession) error {
	if err := session.Transition(model.StateGenerating); err != nil {
		return err
	}
	candidates, err := s.generator.GenerateFrom(session.Target)
	if err != nil {
		return err
	}
	session.Candidates = candidates
	s.logger.Info("generated candidates", "target", session.Target, "count", len(candidates))
	return nil
}

// GivenStep uses caller-supplied identifiers as the candidates.
type GivenStep struct {
	identifiers []string
}

// NewGivenStep creates a GivenStep.
func NewGivenStep(identifiers []string) *GivenStep {
	return &GivenStep{identifiers: identifiers}
}

// Name returns the step name.
func (s *GivenStep) Name() string {
	return "given"
}

// Do fills session.Candidates with the identifiers.
func (s *GivenStep) Do(_ context.Context, session *model.SearchSession) error {
	if err := session.Transition(model.StateGenerating); err != nil {
		return err
	}
	session.Candidates = candidate.FromIdentifiers(s.identifiers)
	if len(session.Candidates) == 0 {
		return &model.InvalidInputError{Reason: "no identifiers given"}
	}
	return nil
}

// ProbeStep probes every candidate in order, escalates Blocked outcomes,
// extracts Found ones and aggregates the results onto the session.
type ProbeStep struct {
	prober     Prober
	extractor  Extractor
	escalation Escalation
	logger     *slog.Logger
}

// ProbeStepOption configures a ProbeStep.
type ProbeStepOption func(*ProbeStep)

// WithEscalation sets the Blocked handler. Without one, a Blocked outcome
// is recorded and the run continues.
func WithEscalation(e Escalation) ProbeStepOption {
	return func(s *ProbeStep) {
		s.escalation = e
	}
}

// WithProbeLogger sets a custom logger for the probe step.
func WithProbeLogger(logger *slog.Logger) ProbeStepOption {
	return func(s *ProbeStep) {
		s.logger = logger
	}
}

// NewProbeStep creates a ProbeStep.
func NewProbeStep(prober Prober, extractor Extractor, opts ...ProbeStepOption) *ProbeStep {
	s := &ProbeStep{
		prober:     prober,
		extractor:  extractor,
		escalation: ContinueEscalation{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return "probe"
}

// Do runs the probe loop. Results gathered so far are copied onto the
// session on every return path.
func (s *ProbeStep) Do(ctx context.Context, session *model.SearchSession) error {
	agg := aggregate.New()
	defer agg.Apply(session)

	for _, cand := range session.Candidates {
		if ctx.Err() != nil {
			s.logger.Warn("search interrupted", "remaining_from", cand.Value)
			session.Interrupted = true
			return nil
		}

		stop, err := s.probeCandidate(ctx, session, agg, cand)
		if err != nil || stop {
			return err
		}
	}
	return nil
}

// probeCandidate probes one candidate until escalation lets the loop move
// on. It reports stop when the run must end without error.
func (s *ProbeStep) probeCandidate(ctx context.Context, session *model.SearchSession, agg *aggregate.Aggregator, cand model.Candidate) (bool, error) {
	for attempt := 1; ; attempt++ {
		if err := session.Transition(model.StateProbing); err != nil {
			return false, err
		}

		outcome, err := s.prober.Probe(ctx, cand, attempt)
		if err != nil {
			if errors.Is(err, fetch.ErrUnavailable) {
				return false, &model.SessionUnavailableError{Provider: "fetch", Err: err}
			}
			if ctx.Err() != nil {
				s.logger.Warn("search interrupted", "remaining_from", cand.Value)
				session.Interrupted = true
				return true, nil
			}
			return false, fmt.Errorf("failed to probe %s: %w", cand.Value, err)
		}

		if err := session.Transition(model.StateClassifying); err != nil {
			return false, err
		}
		s.logger.Info("probed candidate",
			"candidate", cand.Value,
			"rule", cand.Rule,
			"attempt", attempt,
			"classification", outcome.Classification,
			"reason", outcome.Reason,
		)

		if outcome.Classification == model.ClassificationBlocked {
			switch s.escalation.OnBlocked(ctx, outcome) {
			case Retry:
				agg.Add(outcome, nil)
				continue
			case Abort:
				agg.Add(outcome, nil)
				s.logger.Warn("search stopped after blocked candidate", "candidate", cand.Value)
				session.Stopped = true
				return true, nil
			case Continue:
			}
		}

		if !outcome.IsFound() {
			if err := session.Transition(model.StateSkipping); err != nil {
				return false, err
			}
			agg.Add(outcome, nil)
			return false, nil
		}

		if err := session.Transition(model.StateExtracting); err != nil {
			return false, err
		}
		record := s.extractor.Extract(outcome)
		if record.ExtractionError != "" {
			s.logger.Warn("profile found but extraction incomplete",
				"candidate", cand.Value,
				"error", record.ExtractionError,
			)
		}
		agg.Add(outcome, &record)
		return false, nil
	}
}
