// Package classify decides, from a fetched page and its transport status,
// whether a probed profile exists.
//
// Signals are evaluated in a fixed order and the first match wins:
//
//  1. non-2xx status with a blocking signature: Blocked
//  2. any other non-2xx status: NotFound
//  3. 2xx and a not-found marker matches: NotFound
//  4. 2xx and every found marker matches: Found
//  5. anything else is ambiguous: Blocked when a blocking marker matches,
//     TransportError otherwise
//
// An ambiguous page is never reported as Found.
package classify

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/phoneprobe/internal/model"
	"github.com/nao1215/phoneprobe/internal/page"
)

// DefaultBlockedStatuses are statuses that are a blocking signature on
// their own.
var DefaultBlockedStatuses = []int{429}

// Rules holds the per-platform markers.
type Rules struct {
	// Found markers must all match for a 2xx page to count as Found.
	// With no found markers a page is never Found.
	Found []Marker `yaml:"found,omitempty"`

	// NotFound markers each decide NotFound on their own.
	NotFound []Marker `yaml:"notFound,omitempty"`

	// Blocked markers identify anti-automation interstitials and CAPTCHA
	// challenges.
	Blocked []Marker `yaml:"blocked,omitempty"`

	// BlockedStatuses are transport statuses that are a blocking signature.
	// When nil, DefaultBlockedStatuses is used.
	BlockedStatuses []int `yaml:"blockedStatuses,omitempty"`

	// RequireReady withholds Found unless the provider reported its ready
	// signal, for pages whose profile markers render late.
	RequireReady bool `yaml:"requireReady,omitempty"`
}

// Validate checks every marker.
func (r Rules) Validate() error {
	for _, group := range [][]Marker{r.Found, r.NotFound, r.Blocked} {
		for _, m := range group {
			if err := m.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Verdict is the classification of one page with the signal that decided it.
type Verdict struct {
	Classification model.Classification
	Reason         string
}

// Classifier applies Rules to fetched pages. It holds no mutable state.
type Classifier struct {
	rules Rules
}

// New creates a Classifier.
func New(rules Rules) *Classifier {
	if rules.BlockedStatuses == nil {
		rules.BlockedStatuses = DefaultBlockedStatuses
	}
	return &Classifier{rules: rules}
}

// Rules returns the rules in use.
func (c *Classifier) Rules() Rules {
	return c.rules
}

// Classify classifies a page. status is the transport status, zero when the
// provider could not observe one; a zero status with content is treated as
// success, and with empty content as ambiguous.
func (c *Classifier) Classify(status int, content string, ready bool) Verdict {
	doc, err := page.Parse(content)
	if err != nil {
		blocking, blockReason := c.blockingSignature(status, nil)
		if status != 0 && !isSuccess(status) && !blocking {
			return Verdict{model.ClassificationNotFound, fmt.Sprintf("status %d", status)}
		}
		return ambiguous(blockReason, "unparseable page: "+err.Error())
	}
	return c.ClassifyDocument(status, doc, ready)
}

// ClassifyDocument classifies an already parsed page.
func (c *Classifier) ClassifyDocument(status int, doc *page.Document, ready bool) Verdict {
	blocking, blockReason := c.blockingSignature(status, doc)

	if status != 0 && !isSuccess(status) {
		if blocking {
			return Verdict{model.ClassificationBlocked, blockReason}
		}
		return Verdict{model.ClassificationNotFound, fmt.Sprintf("status %d", status)}
	}

	if status == 0 && doc.IsEmpty() {
		return ambiguous(blockReason, "no status and empty content")
	}

	for _, m := range c.rules.NotFound {
		if m.Matches(doc) {
			return Verdict{model.ClassificationNotFound, "not-found marker: " + m.String()}
		}
	}

	if c.allFound(doc) {
		switch {
		case blocking:
			// A profile marker under a challenge overlay is not a confirmation.
			return Verdict{model.ClassificationBlocked, blockReason}
		case c.rules.RequireReady && !ready:
			return ambiguous("", "found markers present but page never became ready")
		default:
			return Verdict{model.ClassificationFound, "found markers: " + describe(c.rules.Found)}
		}
	}

	return ambiguous(blockReason, "no marker matched")
}

// ambiguous resolves case 5. blockReason is empty when no blocking
// signature was seen.
func ambiguous(blockReason, reason string) Verdict {
	if blockReason != "" {
		return Verdict{model.ClassificationBlocked, blockReason}
	}
	return Verdict{model.ClassificationTransportError, "ambiguous: " + reason}
}

// blockingSignature reports whether the status or a blocked marker signals
// an anti-automation response.
func (c *Classifier) blockingSignature(status int, doc *page.Document) (bool, string) {
	if slices.Contains(c.rules.BlockedStatuses, status) {
		return true, fmt.Sprintf("blocked status %d", status)
	}
	if doc == nil {
		return false, ""
	}
	for _, m := range c.rules.Blocked {
		if m.Matches(doc) {
			return true, "blocked marker: " + m.String()
		}
	}
	return false, ""
}

// allFound reports whether at least one found marker is configured and all
// of them match.
func (c *Classifier) allFound(doc *page.Document) bool {
	if len(c.rules.Found) == 0 {
		return false
	}
	for _, m := range c.rules.Found {
		if !m.Matches(doc) {
			return false
		}
	}
	return true
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func describe(markers []Marker) string {
	parts := make([]string, len(markers))
	for i, m := range markers {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}
