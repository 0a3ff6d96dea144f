package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/phoneprobe/internal/fetch"
	"github.com/nao1215/phoneprobe/internal/model"
)

// ErrNoCandidates is recorded on sessions that ended before candidate
// generation without being cancelled.
var ErrNoCandidates = errors.New("session ended before candidate generation")

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence and move the session through its state
// machine.
//
// Design decision: A step returns an error only when the session cannot
// continue. Per-candidate failures are recorded as outcomes instead, so the
// run always reflects partial progress.
type Step interface {
	// Do executes the pipeline step on the session.
	Do(ctx context.Context, session *model.SearchSession) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of the steps of one search session.
type Pipeline struct {
	// platform names the platform sessions of this pipeline search.
	platform string

	// steps contains the ordered list of steps to execute.
	steps []Step

	// provider is released when Execute returns, whatever the outcome.
	provider fetch.SessionProvider

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithProvider hands ownership of a session provider to the pipeline.
// Execute closes it on every terminal path.
func WithProvider(provider fetch.SessionProvider) Option {
	return func(p *Pipeline) {
		p.provider = provider
	}
}

// New creates a new Pipeline for the given platform.
// Steps should be added using AddStep after creation.
func New(platform string, opts ...Option) *Pipeline {
	p := &Pipeline{
		platform: platform,
		steps:    make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Platform returns the platform name.
func (p *Pipeline) Platform() string {
	return p.platform
}

// NewSession creates a session for target on the pipeline's platform.
func (p *Pipeline) NewSession(target model.PhoneNumber) *model.SearchSession {
	return model.NewSearchSession(p.platform, target)
}

// Execute runs all pipeline steps in sequence and leaves the session in a
// terminal state.
//
// A step error aborts the session and is returned. Cancellation is checked
// before each step; a cancelled session keeps what it gathered, is flagged
// interrupted and still finishes as Done when its state allows it.
func (p *Pipeline) Execute(ctx context.Context, session *model.SearchSession) error {
	logger := p.logger.With("search", session.ID, "platform", session.Platform)

	if p.provider != nil {
		defer func() {
			if err := p.provider.Close(); err != nil {
				logger.Warn("failed to close session provider", "error", err)
			}
		}()
	}

	for _, step := range p.steps {
		if ctx.Err() != nil {
			logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			session.Interrupted = true
			break
		}

		logger.Debug("executing step", "step", step.Name(), "state", session.State)

		if err := step.Do(ctx, session); err != nil {
			logger.Error("step failed",
				"step", step.Name(),
				"error", err,
			)
			session.Abort(err)
			return err
		}
	}

	return p.finish(ctx, session, logger)
}

// finish moves the session through Aggregated to Done.
func (p *Pipeline) finish(ctx context.Context, session *model.SearchSession, logger *slog.Logger) error {
	if session.State.IsTerminal() {
		return session.Err
	}
	if !model.CanTransition(session.State, model.StateAggregated) {
		err := ctx.Err()
		if err == nil {
			err = ErrNoCandidates
		}
		session.Abort(err)
		return err
	}
	if err := session.Transition(model.StateAggregated); err != nil {
		session.Abort(err)
		return err
	}
	if err := session.Transition(model.StateDone); err != nil {
		session.Abort(err)
		return err
	}

	logger.Info("session finished",
		"found", session.Summary.Found,
		"not_found", session.Summary.NotFound,
		"blocked", session.Summary.Blocked,
		"transport_error", session.Summary.TransportError,
		"interrupted", session.Interrupted,
		"stopped", session.Stopped,
		"elapsed", session.Duration(),
	)
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
