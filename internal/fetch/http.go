package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultTimeout is the page-load timeout when none is configured.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps the content kept from one response.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	// maxRedirects limits redirect chains.
	maxRedirects = 10
)

// HTTPFetcher loads pages with plain HTTP requests.
//
// Design decision: resty keeps the cookie jar, headers and redirect policy
// on one client, and its request hooks are where tracing attaches, so a
// session's requests share state without a hand-written round tripper
// chain.
type HTTPFetcher struct {
	client      *resty.Client
	maxBodySize int64
	logger      *slog.Logger
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.client.SetHeader("User-Agent", ua)
		}
	}
}

// WithHeaders adds headers sent with every request.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client.SetHeaders(headers)
	}
}

// WithCookie sets a raw Cookie header (e.g. "sessionid=abc; csrftoken=x")
// for platforms that serve profiles only to logged-in visitors.
func WithCookie(cookie string) HTTPOption {
	return func(f *HTTPFetcher) {
		if cookie != "" {
			f.client.SetHeader("Cookie", cookie)
		}
	}
}

// WithTransport routes requests through rt, such as a Tor SOCKS5
// transport.
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(f *HTTPFetcher) {
		if rt != nil {
			f.client.SetTransport(rt)
		}
	}
}

// WithTimeout sets the default page-load timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.SetTimeout(d)
		}
	}
}

// WithMaxBodySize caps the content kept from one response.
func WithMaxBodySize(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	client := resty.New()
	client.SetHeader("User-Agent", DefaultUserAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	client.SetTimeout(DefaultTimeout)

	f := &HTTPFetcher{
		client:      client,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Client exposes the underlying resty client so callers can attach
// instrumentation.
func (f *HTTPFetcher) Client() *resty.Client {
	return f.client
}

// Fetch implements Fetcher.
//
// Non-2xx responses are results, not errors: the status is what the
// classifier looks at. Only failures to obtain a response are returned as
// errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	res, err := f.client.R().SetContext(ctx).Get(req.URL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout fetching %s: %w", req.URL, err)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}

	body := res.Body()
	if int64(len(body)) > f.maxBodySize {
		f.logger.Debug("response body truncated",
			"url", req.URL,
			"size", len(body),
			"limit", f.maxBodySize,
		)
		body = body[:f.maxBodySize]
	}
	content := string(body)

	result := &Result{
		Content:  content,
		Status:   res.StatusCode(),
		Ready:    isHTML(res.Header()) && hasAny(content, req.WaitFor),
		FinalURL: req.URL,
	}
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		result.FinalURL = raw.Request.URL.String()
	}
	return result, nil
}

// isHTML reports whether the response may carry a document. A missing
// Content-Type is given the benefit of the doubt.
func isHTML(h http.Header) bool {
	ct := h.Get("Content-Type")
	return ct == "" || strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}
