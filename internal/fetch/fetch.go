// Package fetch defines the page-fetch and session provider capabilities the
// search pipeline consumes, and ships the implementations phoneprobe uses:
// an HTTP provider built on resty and a headless browser provider built on
// chromedp.
//
// Design decision: The core only sees the Fetcher and SessionProvider
// interfaces. Anything a provider does to reach a page (cookies, proxies,
// rendering JavaScript, persisted browser profiles) stays behind them, so
// classification and extraction can be tested with plain strings.
package fetch

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by a Fetcher when the provider itself can no
// longer serve requests, for example when the browser process died or was
// closed. Unlike a failed fetch it is fatal to the session.
var ErrUnavailable = errors.New("fetch provider unavailable")

// Request describes one page load.
type Request struct {
	// URL is the page to load.
	URL string

	// Timeout bounds the page load. Zero uses the provider default.
	Timeout time.Duration

	// WaitFor lists CSS selectors signalling that the page rendered. The
	// result is Ready once any of them is present. With no selectors a page
	// is Ready as soon as it loaded.
	WaitFor []string

	// WaitTimeout bounds the wait for WaitFor. Zero uses Timeout.
	WaitTimeout time.Duration

	// Click is a selector clicked once the page is Ready, for pages that
	// reveal their details behind an interaction. Ignored by providers that
	// do not render pages.
	Click string

	// AfterClick is a selector awaited after Click before the content is
	// captured.
	AfterClick string
}

// Result is the outcome of a page load.
type Result struct {
	// Content is the raw body or the rendered document.
	Content string

	// Status is the transport status of the main document. Zero means the
	// provider could not observe one.
	Status int

	// Ready reports whether a WaitFor selector appeared.
	Ready bool

	// FinalURL is the URL after redirects.
	FinalURL string
}

// Fetcher loads pages.
//
// A returned error is a transport failure for this request only, unless it
// wraps ErrUnavailable.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// SessionProvider establishes the browsing context fetches run in.
type SessionProvider interface {
	// EnsureReady blocks until the context is usable or timeout elapses.
	// It is called once before any candidate is probed.
	EnsureReady(ctx context.Context, timeout time.Duration) error

	// Close releases the context. It is safe to call more than once.
	Close() error
}

// NopSession is the session provider for anonymous HTTP fetches. It is
// always ready.
type NopSession struct{}

// EnsureReady implements SessionProvider.
func (NopSession) EnsureReady(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Close implements SessionProvider.
func (NopSession) Close() error {
	return nil
}

// Sessions combines providers that must all be ready. They are readied in
// order and closed in reverse order.
type Sessions []SessionProvider

// EnsureReady implements SessionProvider.
func (s Sessions) EnsureReady(ctx context.Context, timeout time.Duration) error {
	for _, p := range s {
		if err := p.EnsureReady(ctx, timeout); err != nil {
			return err
		}
	}
	return nil
}

// Close implements SessionProvider.
func (s Sessions) Close() error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func waitTimeout(req Request) time.Duration {
	if req.WaitTimeout > 0 {
		return req.WaitTimeout
	}
	return req.Timeout
}
