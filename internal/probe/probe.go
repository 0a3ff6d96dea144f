// Package probe fetches the profile page of one candidate and classifies
// it.
package probe

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nao1215/phoneprobe/internal/classify"
	"github.com/nao1215/phoneprobe/internal/fetch"
	"github.com/nao1215/phoneprobe/internal/model"
)

// Placeholder is replaced by the candidate in URL templates.
const Placeholder = "{candidate}"

const instrumentationName = "github.com/nao1215/phoneprobe/internal/probe"

// Limiter gates probes. *ratelimit.Limiter implements it.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Client probes candidates of one platform. A Client belongs to a single
// search session.
type Client struct {
	platform   string
	template   string
	fetcher    fetch.Fetcher
	limiter    Limiter
	classifier *classify.Classifier
	request    fetch.Request
	logger     *slog.Logger
	now        func() time.Time

	tracer  trace.Tracer
	counter metric.Int64Counter
}

// Option configures a Client.
type Option func(*Client)

// WithRequest sets the request template: timeouts, wait-for selectors and
// click interaction. Its URL is ignored.
func WithRequest(req fetch.Request) Option {
	return func(c *Client) {
		c.request = req
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a Client.
func New(platform, urlTemplate string, f fetch.Fetcher, l Limiter, cl *classify.Classifier, opts ...Option) *Client {
	c := &Client{
		platform:   platform,
		template:   urlTemplate,
		fetcher:    f,
		limiter:    l,
		classifier: cl,
		now:        time.Now,
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"phoneprobe.probe.outcomes",
		metric.WithDescription("Probe outcomes by classification"),
	)
	if err == nil {
		c.counter = counter
	}
	return c
}

// URL returns the canonical profile URL of candidate. The candidate is
// query-escaped when the placeholder sits in the query string and
// path-escaped otherwise.
func (c *Client) URL(candidate string) string {
	i := strings.Index(c.template, Placeholder)
	if i < 0 {
		return c.template
	}
	escaped := url.PathEscape(candidate)
	if q := strings.IndexByte(c.template, '?'); q >= 0 && q < i {
		escaped = url.QueryEscape(candidate)
	}
	return c.template[:i] + escaped + c.template[i+len(Placeholder):]
}

// Probe waits for the limiter, fetches the candidate's page and classifies
// it.
//
// Transport failures are reported in the outcome, never as an error. The
// returned error is either the context error from the limiter wait, in which
// case no fetch happened, or a provider failure wrapping
// fetch.ErrUnavailable, which ends the session.
//
// The fetch itself is detached from ctx cancellation and bounded by the
// request timeouts, so an interrupt lands between candidates.
func (c *Client) Probe(ctx context.Context, cand model.Candidate, attempt int) (model.ProbeOutcome, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return model.ProbeOutcome{}, err
	}

	req := c.request
	req.URL = c.URL(cand.Value)

	ctx, span := c.tracer.Start(ctx, "probe "+c.platform, trace.WithAttributes(
		attribute.String("phoneprobe.platform", c.platform),
		attribute.String("phoneprobe.rule", cand.Rule),
		attribute.Int("phoneprobe.attempt", attempt),
	))
	defer span.End()

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget(req))
	defer cancel()

	outcome := model.ProbeOutcome{
		Candidate: cand,
		URL:       req.URL,
		Attempt:   attempt,
	}

	res, err := c.fetcher.Fetch(fctx, req)
	outcome.Timestamp = c.now()
	if err != nil {
		if errors.Is(err, fetch.ErrUnavailable) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return model.ProbeOutcome{}, err
		}
		outcome.Classification = model.ClassificationTransportError
		outcome.Reason = "transport failure"
		outcome.Error = err.Error()
		c.record(ctx, span, outcome)
		return outcome, nil
	}

	verdict := c.classifier.Classify(res.Status, res.Content, res.Ready)
	outcome.Classification = verdict.Classification
	outcome.Reason = verdict.Reason
	outcome.HTTPStatus = res.Status
	outcome.Ready = res.Ready
	outcome.RawContent = res.Content
	if res.FinalURL != "" {
		outcome.URL = res.FinalURL
	}
	c.record(ctx, span, outcome)
	return outcome, nil
}

func (c *Client) record(ctx context.Context, span trace.Span, o model.ProbeOutcome) {
	span.SetAttributes(
		attribute.String("phoneprobe.classification", o.Classification.String()),
		attribute.Int("http.response.status_code", o.HTTPStatus),
	)
	if o.Error != "" {
		span.SetStatus(codes.Error, o.Error)
	}
	if c.counter != nil {
		c.counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("platform", c.platform),
			attribute.String("classification", o.Classification.String()),
		))
	}

	c.logger.Debug("page classified",
		"candidate", o.Candidate.Value,
		"rule", o.Candidate.Rule,
		"attempt", o.Attempt,
		"classification", o.Classification.String(),
		"reason", o.Reason,
		"status", o.HTTPStatus,
	)
}

// budget bounds one fetch: the page load, the wait for its ready
// selectors, and the wait after a click.
func budget(req fetch.Request) time.Duration {
	load := req.Timeout
	if load <= 0 {
		load = fetch.DefaultTimeout
	}
	wait := req.WaitTimeout
	if wait <= 0 {
		wait = load
	}
	if len(req.WaitFor) == 0 {
		wait = 0
	}
	if req.Click != "" {
		wait *= 2
	}
	return load + wait + time.Second
}
