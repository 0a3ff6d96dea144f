package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/phoneprobe/internal/page"
)

// DefaultPollInterval is used when Poll is given a non-positive interval.
const DefaultPollInterval = 500 * time.Millisecond

// ErrPollTimeout is returned by Poll when the condition never held.
var ErrPollTimeout = errors.New("condition not met before timeout")

// Predicate reports whether an awaited remote condition holds. A returned
// error stops polling.
type Predicate func(ctx context.Context) (bool, error)

// Poll evaluates cond immediately and then every interval until it holds,
// timeout elapses or ctx is done. A non-positive timeout evaluates cond
// once.
//
// Parent cancellation is reported as ctx.Err(); an elapsed timeout as
// ErrPollTimeout.
func Poll(ctx context.Context, interval, timeout time.Duration, cond Predicate) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w after %s", ErrPollTimeout, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ContentSource returns the current content of a page being awaited.
type ContentSource func(ctx context.Context) (string, error)

// AnySelector builds a Predicate that holds once the content from src
// matches any of the selectors.
func AnySelector(src ContentSource, selectors ...string) Predicate {
	return func(ctx context.Context) (bool, error) {
		content, err := src(ctx)
		if err != nil {
			return false, err
		}
		return hasAny(content, selectors), nil
	}
}

// hasAny reports whether content matches any selector. Empty selectors
// always match.
func hasAny(content string, selectors []string) bool {
	if len(selectors) == 0 {
		return true
	}
	doc, err := page.Parse(content)
	if err != nil {
		return false
	}
	for _, s := range selectors {
		if doc.Has(s) {
			return true
		}
	}
	return false
}
