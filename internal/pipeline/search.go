package pipeline

import (
	"log/slog"
	"time"

	"github.com/nao1215/phoneprobe/internal/fetch"
)

// Components wires the parts of one search session. Every session gets its
// own Components; the provider and limiter behind Prober are never shared.
type Components struct {
	// Platform is the platform name recorded on the session.
	Platform string

	// Generator derives candidates. It is unused by check pipelines.
	Generator Generator

	// Prober fetches and classifies candidates.
	Prober Prober

	// Extractor builds records for Found outcomes.
	Extractor Extractor

	// Provider is readied once the candidates are known, before the first
	// probe, and closed when the run ends.
	// Nil means no provider needs preparing.
	Provider fetch.SessionProvider

	// ReadyTimeout bounds Provider.EnsureReady.
	ReadyTimeout time.Duration

	// Escalation handles Blocked outcomes. Nil means continue.
	Escalation Escalation

	// Logger is the session logger. Nil means slog.Default().
	Logger *slog.Logger
}

// NewSearch builds the pipeline of a phone-number search:
// generate, ready, probe. The number is checked before the provider is
// started, so invalid input never waits on a browser or Tor.
func NewSearch(c Components) *Pipeline {
	p := c.pipeline()
	p.AddStep(NewGenerateStep(c.Generator, p.logger))
	c.addReadyStep(p)
	p.AddStep(c.probeStep(p.logger))
	return p
}

// NewCheck builds the pipeline that probes the given identifiers directly
// instead of deriving them from a phone number.
func NewCheck(c Components, identifiers []string) *Pipeline {
	p := c.pipeline()
	p.AddStep(NewGivenStep(identifiers))
	c.addReadyStep(p)
	p.AddStep(c.probeStep(p.logger))
	return p
}

func (c Components) pipeline() *Pipeline {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts := []Option{WithLogger(logger)}
	if c.Provider != nil {
		opts = append(opts, WithProvider(c.Provider))
	}
	return New(c.Platform, opts...)
}

func (c Components) addReadyStep(p *Pipeline) {
	if c.Provider != nil {
		p.AddStep(NewReadyStep(c.Provider, c.ReadyTimeout, p.logger))
	}
}

func (c Components) probeStep(logger *slog.Logger) *ProbeStep {
	opts := []ProbeStepOption{WithProbeLogger(logger)}
	if c.Escalation != nil {
		opts = append(opts, WithEscalation(c.Escalation))
	}
	return NewProbeStep(c.Prober, c.Extractor, opts...)
}
