package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/phoneprobe/internal/model"
)

// Factory builds the pipeline of one session. It is called once per target
// so that every session owns its provider and limiter.
type Factory func() (*Pipeline, error)

// BatchRunner runs independent search sessions for many phone numbers.
//
// Design decision: Concurrency is across sessions only. Each session still
// probes its candidates strictly one after another under its own limiter.
type BatchRunner struct {
	// platform names the platform recorded on sessions whose pipeline
	// could not be built.
	platform string

	// factory creates a new pipeline for each session.
	factory Factory

	// concurrency is the maximum number of concurrent sessions.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchRunner) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent sessions.
// Default is 1 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchRunner) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchRunner creates a new BatchRunner.
func NewBatchRunner(platform string, factory Factory, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{
		platform:    platform,
		factory:     factory,
		concurrency: 1,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	return b
}

// Run searches every phone number and returns one session per number in
// input order. Per-session failures are recorded on the session; the error
// return is set only when ctx was cancelled before every session started.
func (b *BatchRunner) Run(ctx context.Context, phones []string) ([]*model.SearchSession, error) {
	return b.run(ctx, phones, nil)
}

// RunWithCallback is Run with a callback invoked as each session ends.
// The callback runs on the session goroutine and must be safe for
// concurrent use.
func (b *BatchRunner) RunWithCallback(
	ctx context.Context,
	phones []string,
	callback func(session *model.SearchSession, index int),
) ([]*model.SearchSession, error) {
	return b.run(ctx, phones, callback)
}

func (b *BatchRunner) run(
	ctx context.Context,
	phones []string,
	callback func(session *model.SearchSession, index int),
) ([]*model.SearchSession, error) {
	b.logger.Info("starting batch search",
		"total", len(phones),
		"concurrency", b.concurrency,
	)
	startTime := time.Now()

	// Each goroutine writes only its own index.
	sessions := make([]*model.SearchSession, len(phones))

	// Session failures never cancel siblings, so the group has no derived
	// context.
	var g errgroup.Group
	g.SetLimit(b.concurrency)

	for i, phone := range phones {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			session := b.runOne(ctx, phone, i, len(phones))
			sessions[i] = session
			if callback != nil {
				callback(session, i)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	b.logger.Info("batch search complete",
		"total", len(phones),
		"elapsed", time.Since(startTime),
	)

	completed := make([]*model.SearchSession, 0, len(sessions))
	for _, s := range sessions {
		if s != nil {
			completed = append(completed, s)
		}
	}
	if len(completed) < len(phones) {
		return completed, ctx.Err()
	}
	return completed, nil
}

func (b *BatchRunner) runOne(ctx context.Context, phone string, index, total int) *model.SearchSession {
	target := model.ParsePhoneNumber(phone)
	b.logger.Info("searching number",
		"target", target,
		"index", index+1,
		"total", total,
	)

	p, err := b.factory()
	if err != nil {
		session := model.NewSearchSession(b.platform, target)
		session.Abort(err)
		b.logger.Warn("failed to build session", "target", target, "error", err)
		return session
	}

	session := p.NewSession(target)
	if err := p.Execute(ctx, session); err != nil {
		b.logger.Warn("search failed", "target", target, "error", err)
	}
	return session
}
