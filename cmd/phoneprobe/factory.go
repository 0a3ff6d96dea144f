package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/nao1215/phoneprobe/internal/config"
	"github.com/nao1215/phoneprobe/internal/extract"
	"github.com/nao1215/phoneprobe/internal/fetch"
	"github.com/nao1215/phoneprobe/internal/pipeline"
	"github.com/nao1215/phoneprobe/internal/platform"
	"github.com/nao1215/phoneprobe/internal/probe"
	"github.com/nao1215/phoneprobe/internal/ratelimit"
	"github.com/nao1215/phoneprobe/internal/telemetry"
	"github.com/nao1215/phoneprobe/internal/tor"
)

// sessionFactory builds the components of one session per call. Every
// session owns its limiter, fetcher and provider; only the embedded Tor
// daemon process behind the providers is shared.
type sessionFactory struct {
	cfg      *config.Config
	desc     platform.Descriptor
	useTor   bool
	daemon   *tor.SharedDaemon
	prompter *prompter
	logger   *slog.Logger
}

// newSessionFactory applies the command-line overrides to desc. daemon is
// the embedded Tor daemon of the run, nil unless --tor is set.
func newSessionFactory(cfg *config.Config, desc platform.Descriptor, daemon *tor.SharedDaemon, p *prompter, logger *slog.Logger) *sessionFactory {
	if cfg.Timeout > 0 {
		desc.Timeout = cfg.Timeout
	}
	useTor := cfg.TorEnabled()
	if useTor && desc.Fetcher != platform.FetcherHTTP {
		logger.Warn("tor only applies to HTTP platforms, probing directly", "platform", desc.Name)
		useTor = false
	}
	return &sessionFactory{
		cfg:      cfg,
		desc:     desc,
		useTor:   useTor,
		daemon:   daemon,
		prompter: p,
		logger:   logger.With("platform", desc.Name),
	}
}

// components returns freshly built components for one session.
func (f *sessionFactory) components() pipeline.Components {
	limiter := f.desc.Limiter(ratelimit.WithLogger(f.logger))

	fetcher, provider := f.fetcher()

	prober := probe.New(f.desc.Name, f.desc.URLTemplate, fetcher, limiter, f.desc.Classifier(),
		probe.WithRequest(f.desc.Request()),
		probe.WithLogger(f.logger),
	)

	return pipeline.Components{
		Platform:     f.desc.Name,
		Generator:    f.desc.Generator(),
		Prober:       prober,
		Extractor:    f.desc.Extractor(extract.WithLogger(f.logger)),
		Provider:     provider,
		ReadyTimeout: f.readyTimeout(),
		Escalation:   f.escalation(limiter),
		Logger:       f.logger,
	}
}

// fetcher returns the page fetcher of the platform and the provider that
// prepares it.
func (f *sessionFactory) fetcher() (fetch.Fetcher, fetch.SessionProvider) {
	if f.desc.Fetcher == platform.FetcherBrowser {
		b := fetch.NewBrowserFetcher(
			fetch.WithUserDataDir(filepath.Join(f.cfg.BrowserProfileDir, f.desc.Name)),
			fetch.WithHeadless(f.cfg.Headless),
			fetch.WithBrowserUserAgent(f.desc.UserAgent),
			fetch.WithReadyCheck(f.desc.ReadyURL, f.desc.ReadySelector),
			fetch.WithBrowserLogger(f.logger),
		)
		return b, b
	}

	opts := []fetch.HTTPOption{
		fetch.WithUserAgent(f.desc.UserAgent),
		fetch.WithHeaders(f.desc.Headers),
		fetch.WithCookie(f.desc.Cookie),
		fetch.WithTimeout(f.desc.Timeout),
		fetch.WithMaxBodySize(f.cfg.MaxBodySize),
		fetch.WithHTTPLogger(f.logger),
	}
	var provider fetch.SessionProvider = fetch.NopSession{}
	if f.useTor {
		s := f.torSession()
		opts = append(opts, fetch.WithTransport(s.Transport()))
		provider = s
	}
	hf := fetch.NewHTTPFetcher(opts...)
	if f.cfg.OTLPEndpoint != "" {
		telemetry.InstrumentResty(hf.Client(), otel.GetTracerProvider())
	}
	return hf, provider
}

// torSession returns a new Tor session through the external proxy or the
// shared daemon.
func (f *sessionFactory) torSession() *tor.Session {
	opts := []tor.SessionOption{tor.WithLogger(f.logger)}
	if f.cfg.ExternalTorAddress != "" {
		opts = append(opts, tor.WithExternalProxy(f.cfg.ExternalTorAddress))
	} else {
		opts = append(opts, tor.WithSharedDaemon(f.daemon))
	}
	if f.desc.Timeout > 0 {
		opts = append(opts, tor.WithRequestTimeout(f.desc.Timeout))
	}
	return tor.NewSession(opts...)
}

// readyTimeout leaves room for the embedded Tor daemon to bootstrap.
func (f *sessionFactory) readyTimeout() time.Duration {
	timeout := f.desc.ReadyTimeout
	if f.useTor && f.cfg.UseTor && f.cfg.TorStartupTimeout > timeout {
		timeout = f.cfg.TorStartupTimeout
	}
	return timeout
}

func (f *sessionFactory) escalation(limiter *ratelimit.Limiter) pipeline.Escalation {
	if f.prompter != nil {
		return f.prompter.escalation(limiter, f.desc.Cooldown)
	}
	return pipeline.CooldownEscalation{
		Limiter:    limiter,
		Cooldown:   f.desc.Cooldown,
		MaxRetries: f.desc.MaxRetries,
		Logger:     f.logger,
	}
}

// search returns a phone-number search pipeline.
func (f *sessionFactory) search() (*pipeline.Pipeline, error) {
	return pipeline.NewSearch(f.components()), nil
}

// check returns a pipeline probing the given usernames.
func (f *sessionFactory) check(usernames []string) *pipeline.Pipeline {
	return pipeline.NewCheck(f.components(), usernames)
}

// openTor returns the embedded Tor daemon of the run, or nil when the
// embedded daemon is not used. It launches on the first session that
// needs it.
func openTor(cfg *config.Config) *tor.SharedDaemon {
	if !cfg.UseTor {
		return nil
	}
	return tor.NewSharedDaemon()
}

// closeTor stops the embedded daemon, if one was started.
func closeTor(d *tor.SharedDaemon, logger *slog.Logger) {
	if d == nil {
		return
	}
	if err := d.Stop(); err != nil {
		logger.Warn("failed to stop Tor", "error", err)
	}
}

// setupTelemetry installs the OTLP exporters when an endpoint is set. A
// failure is reported and the run continues without export.
func setupTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}
	tel, err := telemetry.Setup(ctx, config.AppName, getVersion(), telemetry.Config{
		Endpoint: cfg.OTLPEndpoint,
		Headers:  cfg.OTLPHeaders,
	})
	if err != nil {
		logger.Warn("telemetry disabled", "error", fmt.Errorf("failed to set up OTLP export: %w", err))
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush telemetry", "error", err)
		}
	}
}
