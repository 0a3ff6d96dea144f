// Package platform describes the remote platforms phoneprobe can search.
//
// A Descriptor gathers everything platform specific: the profile URL
// template, candidate rules, classification markers, the extraction schema
// and fetch hints. The search pipeline itself is the same for every
// platform.
//
// Design decision: Descriptors are plain data with YAML tags, so a user can
// adjust a marker or a rule in the config file when a platform changes its
// pages, without rebuilding the binary.
package platform

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/phoneprobe/internal/candidate"
	"github.com/nao1215/phoneprobe/internal/classify"
	"github.com/nao1215/phoneprobe/internal/extract"
	"github.com/nao1215/phoneprobe/internal/fetch"
	"github.com/nao1215/phoneprobe/internal/probe"
	"github.com/nao1215/phoneprobe/internal/ratelimit"
)

// FetcherKind selects the page-fetch provider of a platform.
type FetcherKind string

const (
	// FetcherHTTP fetches pages with plain HTTP requests.
	FetcherHTTP FetcherKind = "http"

	// FetcherBrowser renders pages in a headless browser.
	FetcherBrowser FetcherKind = "browser"
)

// Descriptor validation errors.
var (
	// ErrInvalidDescriptor is wrapped by every Validate error.
	ErrInvalidDescriptor = errors.New("invalid platform descriptor")

	// ErrUnknownPlatform is returned by Registry.Get for unknown names.
	ErrUnknownPlatform = errors.New("unknown platform")
)

// Descriptor describes one platform.
type Descriptor struct {
	// Name is the platform identifier used on the command line.
	Name string `yaml:"name"`

	// Description is a one-line human description.
	Description string `yaml:"description,omitempty"`

	// URLTemplate is the profile URL with a {candidate} placeholder.
	URLTemplate string `yaml:"urlTemplate,omitempty"`

	// SingleTarget marks platforms that look up the full number itself
	// rather than derived identifiers. Their output is a single record.
	SingleTarget bool `yaml:"singleTarget,omitempty"`

	// MinDigits is the minimum normalized phone number length.
	MinDigits int `yaml:"minDigits,omitempty"`

	// RequiredPrefix rejects numbers that do not start with it.
	RequiredPrefix string `yaml:"requiredPrefix,omitempty"`

	// Rules derive candidates from the phone number, in probing order.
	Rules []candidate.Rule `yaml:"rules,omitempty"`

	// Fetcher selects the page-fetch provider.
	Fetcher FetcherKind `yaml:"fetcher,omitempty"`

	// MinDelay is the minimum delay between two probes.
	MinDelay time.Duration `yaml:"minDelay,omitempty"`

	// Jitter is the maximum random delay added to MinDelay.
	Jitter time.Duration `yaml:"jitter,omitempty"`

	// Cooldown is the session-wide pause after a Blocked classification.
	Cooldown time.Duration `yaml:"cooldown,omitempty"`

	// MaxRetries bounds the retries of a Blocked candidate.
	MaxRetries int `yaml:"maxRetries,omitempty"`

	// Timeout bounds one page load.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// WaitFor lists selectors of which one signals a rendered page.
	WaitFor []string `yaml:"waitFor,omitempty"`

	// WaitTimeout bounds the wait for WaitFor.
	WaitTimeout time.Duration `yaml:"waitTimeout,omitempty"`

	// Click is clicked on a ready page before capture.
	Click string `yaml:"click,omitempty"`

	// AfterClick is awaited after Click.
	AfterClick string `yaml:"afterClick,omitempty"`

	// ReadyURL and ReadySelector make the session provider wait for a
	// logged-in UI before probing.
	ReadyURL      string `yaml:"readyUrl,omitempty"`
	ReadySelector string `yaml:"readySelector,omitempty"`

	// ReadyTimeout bounds the session provider wait.
	ReadyTimeout time.Duration `yaml:"readyTimeout,omitempty"`

	// UserAgent overrides the provider user agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Headers are sent with every HTTP request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Cookie is a raw Cookie header for HTTP requests.
	Cookie string `yaml:"cookie,omitempty"`

	// Markers drive classification.
	Markers classify.Rules `yaml:"markers,omitempty"`

	// Schema drives extraction. A zero schema yields existence-only records.
	Schema extract.Schema `yaml:"schema,omitempty"`
}

// Validate checks the descriptor for settings that cannot work.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidDescriptor)
	}
	if !strings.Contains(d.URLTemplate, probe.Placeholder) {
		return fmt.Errorf("%w: %s: url template has no %s placeholder", ErrInvalidDescriptor, d.Name, probe.Placeholder)
	}
	if len(d.Rules) == 0 {
		return fmt.Errorf("%w: %s: no candidate rules", ErrInvalidDescriptor, d.Name)
	}
	switch d.Fetcher {
	case FetcherHTTP, FetcherBrowser:
	default:
		return fmt.Errorf("%w: %s: unknown fetcher %q", ErrInvalidDescriptor, d.Name, d.Fetcher)
	}
	if d.MinDelay < 0 || d.Jitter < 0 || d.Cooldown < 0 {
		return fmt.Errorf("%w: %s: delays must not be negative", ErrInvalidDescriptor, d.Name)
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("%w: %s: maxRetries must not be negative", ErrInvalidDescriptor, d.Name)
	}
	if d.ReadySelector != "" && d.ReadyURL == "" {
		return fmt.Errorf("%w: %s: readySelector needs readyUrl", ErrInvalidDescriptor, d.Name)
	}
	if len(d.Markers.Found) == 0 {
		return fmt.Errorf("%w: %s: no found markers", ErrInvalidDescriptor, d.Name)
	}
	if err := d.Markers.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDescriptor, d.Name, err)
	}
	if err := d.Schema.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDescriptor, d.Name, err)
	}
	return nil
}

// Generator returns the candidate generator of the platform.
func (d Descriptor) Generator() *candidate.Generator {
	opts := []candidate.Option{candidate.WithMinDigits(d.MinDigits)}
	if d.RequiredPrefix != "" {
		opts = append(opts, candidate.WithRequiredPrefix(d.RequiredPrefix))
	}
	return candidate.NewGenerator(d.Rules, opts...)
}

// Classifier returns the existence classifier of the platform.
func (d Descriptor) Classifier() *classify.Classifier {
	return classify.New(d.Markers)
}

// Extractor returns the profile extractor of the platform.
func (d Descriptor) Extractor(opts ...extract.Option) *extract.Extractor {
	return extract.New(d.Name, d.Schema, opts...)
}

// Limiter returns a fresh rate limiter with the platform delays.
func (d Descriptor) Limiter(opts ...ratelimit.Option) *ratelimit.Limiter {
	if d.Jitter > 0 {
		opts = append([]ratelimit.Option{ratelimit.WithJitter(d.Jitter)}, opts...)
	}
	return ratelimit.New(d.MinDelay, opts...)
}

// Request returns the fetch request template of the platform.
func (d Descriptor) Request() fetch.Request {
	return fetch.Request{
		Timeout:     d.Timeout,
		WaitFor:     append([]string(nil), d.WaitFor...),
		WaitTimeout: d.WaitTimeout,
		Click:       d.Click,
		AfterClick:  d.AfterClick,
	}
}
