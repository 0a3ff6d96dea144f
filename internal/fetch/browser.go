package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/phoneprobe/internal/model"
)

// BrowserFetcher renders pages in a headless Chrome instance and doubles as
// the session provider for platforms whose profiles only render for a
// logged-in browser.
//
// One browser process is started lazily and shared by every fetch of the
// session; each fetch runs in its own tab. With a user-data directory the
// browser profile, and thus any saved login, survives between runs.
type BrowserFetcher struct {
	userDataDir  string
	headless     bool
	userAgent    string
	pollInterval time.Duration
	readyURL     string
	readySel     string
	logger       *slog.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	closed        bool
}

// BrowserOption configures a BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithUserDataDir sets the persistent browser profile directory.
func WithUserDataDir(dir string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.userDataDir = dir
	}
}

// WithHeadless toggles headless mode. A visible window is needed to scan a
// login QR code the first time a profile is used.
func WithHeadless(headless bool) BrowserOption {
	return func(b *BrowserFetcher) {
		b.headless = headless
	}
}

// WithBrowserUserAgent overrides the browser user agent.
func WithBrowserUserAgent(ua string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.userAgent = ua
	}
}

// WithPollInterval sets how often rendered content is checked while waiting
// for selectors.
func WithPollInterval(d time.Duration) BrowserOption {
	return func(b *BrowserFetcher) {
		b.pollInterval = d
	}
}

// WithReadyCheck makes EnsureReady load url and wait for selector, e.g. the
// main UI of a messaging web client that only appears once logged in.
func WithReadyCheck(url, selector string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.readyURL = url
		b.readySel = selector
	}
}

// WithBrowserLogger sets the logger.
func WithBrowserLogger(logger *slog.Logger) BrowserOption {
	return func(b *BrowserFetcher) {
		b.logger = logger
	}
}

// NewBrowserFetcher creates a BrowserFetcher. No browser is started until
// the first EnsureReady or Fetch.
func NewBrowserFetcher(opts ...BrowserOption) *BrowserFetcher {
	b := &BrowserFetcher{
		headless:     true,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// start launches the browser once.
func (b *BrowserFetcher) start() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("%w: browser closed", ErrUnavailable)
	}
	if b.browserCtx != nil {
		if err := b.browserCtx.Err(); err != nil {
			return nil, fmt.Errorf("%w: browser exited: %v", ErrUnavailable, err)
		}
		return b.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
	)
	if b.userDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.userDataDir))
	}
	if b.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("%w: failed to start browser: %v", ErrUnavailable, err)
	}

	b.browserCtx = browserCtx
	b.cancelAlloc = cancelAlloc
	b.cancelBrowser = cancelBrowser
	b.logger.Debug("browser started", "userDataDir", b.userDataDir, "headless", b.headless)
	return browserCtx, nil
}

// EnsureReady implements SessionProvider.
func (b *BrowserFetcher) EnsureReady(ctx context.Context, timeout time.Duration) error {
	browserCtx, err := b.start()
	if err != nil {
		return &model.SessionUnavailableError{Provider: "browser", Err: err}
	}
	if b.readySel == "" {
		return nil
	}
	timeout = orDefaultTimeout(timeout)

	tabCtx, cancel := b.newTab(ctx, browserCtx, timeout)
	defer cancel()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(b.readyURL)); err != nil {
		return &model.SessionUnavailableError{Provider: "browser", Timeout: timeout, Err: err}
	}
	if err := Poll(tabCtx, b.pollInterval, timeout, AnySelector(b.rendered(tabCtx), b.readySel)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &model.SessionUnavailableError{Provider: "browser", Timeout: timeout, Err: err}
	}
	return nil
}

// Fetch implements Fetcher.
//
// The main document status is taken from the network events of the tab;
// it stays zero when the browser served the document without one (cache,
// service worker).
func (b *BrowserFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	browserCtx, err := b.start()
	if err != nil {
		return nil, err
	}

	timeout := orDefaultTimeout(req.Timeout)
	tabCtx, cancel := b.newTab(ctx, browserCtx, timeout+waitTimeout(req))
	defer cancel()

	var status atomic.Int64
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			status.CompareAndSwap(0, e.Response.Status)
		}
	})

	if err := chromedp.Run(tabCtx, network.Enable(), chromedp.Navigate(req.URL)); err != nil {
		if browserCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("failed to load %s: %w", req.URL, err)
	}

	result := &Result{FinalURL: req.URL}
	src := b.rendered(tabCtx)

	result.Ready = len(req.WaitFor) == 0
	if !result.Ready {
		err := Poll(tabCtx, b.pollInterval, waitTimeout(req), AnySelector(src, req.WaitFor...))
		switch {
		case err == nil:
			result.Ready = true
		case !errors.Is(err, ErrPollTimeout):
			return nil, fmt.Errorf("failed waiting for %s: %w", req.URL, err)
		}
	}

	if result.Ready && req.Click != "" {
		if err := b.click(tabCtx, req); err != nil {
			b.logger.Debug("click interaction failed", "url", req.URL, "selector", req.Click, "error", err)
		}
	}

	content, err := src(tabCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", req.URL, err)
	}
	result.Content = content
	result.Status = int(status.Load())

	var location string
	if err := chromedp.Run(tabCtx, chromedp.Location(&location)); err == nil && location != "" {
		result.FinalURL = location
	}
	return result, nil
}

// click clicks req.Click, present in the document, and waits for
// req.AfterClick. The page is captured whatever the outcome.
func (b *BrowserFetcher) click(ctx context.Context, req Request) error {
	content, err := b.rendered(ctx)(ctx)
	if err != nil {
		return err
	}
	if !hasAny(content, []string{req.Click}) {
		return fmt.Errorf("selector %q not present", req.Click)
	}
	if err := chromedp.Run(ctx, chromedp.Click(req.Click, chromedp.ByQuery)); err != nil {
		return err
	}
	if req.AfterClick == "" {
		return nil
	}
	return Poll(ctx, b.pollInterval, waitTimeout(req), AnySelector(b.rendered(ctx), req.AfterClick))
}

// Close implements SessionProvider.
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.cancelBrowser != nil {
		b.cancelBrowser()
		b.cancelAlloc()
		b.cancelBrowser = nil
		b.cancelAlloc = nil
		b.browserCtx = nil
	}
	return nil
}

// orDefaultTimeout returns DefaultTimeout for a non-positive timeout.
func orDefaultTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}

// newTab opens a tab bounded by timeout that is also closed when ctx is.
func (b *BrowserFetcher) newTab(ctx, browserCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	stop := context.AfterFunc(ctx, cancelTab)
	return tabCtx, func() {
		stop()
		cancelTimeout()
		cancelTab()
	}
}

// rendered returns a ContentSource reading the tab's current DOM.
func (b *BrowserFetcher) rendered(tabCtx context.Context) ContentSource {
	return func(context.Context) (string, error) {
		var html string
		if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
			return "", err
		}
		return html, nil
	}
}
