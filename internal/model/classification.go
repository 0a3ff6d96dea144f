package model

import (
	"fmt"
	"strings"
)

// Classification is the verdict reached for one probe attempt.
//
// The zero value is ClassificationTransportError: an outcome that was never
// classified must not read as a confirmed profile.
type Classification int

const (
	// ClassificationTransportError marks a probe where the page could not be
	// fetched (timeout, refused connection, DNS failure) or the fetched page
	// was ambiguous.
	ClassificationTransportError Classification = iota

	// ClassificationFound marks a probe whose page shows a profile.
	ClassificationFound

	// ClassificationNotFound marks a probe whose page states that no such
	// profile exists.
	ClassificationNotFound

	// ClassificationBlocked marks a probe answered by an anti-automation
	// interstitial, a rate-limit response or a CAPTCHA.
	ClassificationBlocked
)

// classificationNames maps each classification to its wire name.
var classificationNames = map[Classification]string{
	ClassificationTransportError: "transport_error",
	ClassificationFound:          "found",
	ClassificationNotFound:       "not_found",
	ClassificationBlocked:        "blocked",
}

// String returns the wire name of the classification.
func (c Classification) String() string {
	if name, ok := classificationNames[c]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the classification as its wire name.
func (c Classification) MarshalText() ([]byte, error) {
	name, ok := classificationNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown classification %d", int(c))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a wire name produced by MarshalText.
func (c *Classification) UnmarshalText(text []byte) error {
	parsed, err := ParseClassification(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseClassification parses a wire name. Matching is case-insensitive.
func ParseClassification(s string) (Classification, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range classificationNames {
		if name == s {
			return c, nil
		}
	}
	return ClassificationTransportError, fmt.Errorf("unknown classification %q", s)
}
