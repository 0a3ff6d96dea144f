package classify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/phoneprobe/internal/page"
)

// MarkerKind selects what part of a page a Marker inspects.
type MarkerKind string

const (
	// KindTitle matches when the page title contains Value.
	KindTitle MarkerKind = "title"

	// KindText matches when the raw content contains Value.
	KindText MarkerKind = "text"

	// KindSelector matches when the CSS selector Value matches an element.
	KindSelector MarkerKind = "selector"
)

// ErrInvalidMarker is returned by Validate for malformed markers.
var ErrInvalidMarker = errors.New("invalid marker")

// Marker is one page signal. Substring comparisons are case-sensitive.
type Marker struct {
	// Kind selects the inspected part of the page.
	Kind MarkerKind `yaml:"kind"`

	// Value is the substring or selector to look for.
	Value string `yaml:"value"`

	// Absent inverts the marker: it matches when the signal is missing.
	// This expresses "expected structural element not present".
	Absent bool `yaml:"absent,omitempty"`
}

// Title returns a title marker.
func Title(value string) Marker {
	return Marker{Kind: KindTitle, Value: value}
}

// Text returns a raw-content marker.
func Text(value string) Marker {
	return Marker{Kind: KindText, Value: value}
}

// Selector returns a CSS selector marker.
func Selector(value string) Marker {
	return Marker{Kind: KindSelector, Value: value}
}

// Missing returns m inverted.
func Missing(m Marker) Marker {
	m.Absent = !m.Absent
	return m
}

// Validate checks that the marker can be evaluated.
func (m Marker) Validate() error {
	switch m.Kind {
	case KindTitle, KindText, KindSelector:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMarker, m.Kind)
	}
	if m.Value == "" {
		return fmt.Errorf("%w: empty %s value", ErrInvalidMarker, m.Kind)
	}
	return nil
}

// Matches evaluates the marker against a parsed page.
func (m Marker) Matches(d *page.Document) bool {
	var present bool
	switch m.Kind {
	case KindTitle:
		present = strings.Contains(d.Title, m.Value)
	case KindText:
		present = strings.Contains(d.Raw(), m.Value)
	case KindSelector:
		present = d.Has(m.Value)
	default:
		return false
	}
	return present != m.Absent
}

// String describes the marker for outcome reasons.
func (m Marker) String() string {
	if m.Absent {
		return fmt.Sprintf("no %s %q", m.Kind, m.Value)
	}
	return fmt.Sprintf("%s %q", m.Kind, m.Value)
}
