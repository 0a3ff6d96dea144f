package model

import "time"

// Candidate is a platform identifier derived from a phone number.
type Candidate struct {
	// Value is the identifier probed on the platform (e.g. "eu87654321").
	Value string `json:"value"`

	// Rule names the generation rule that first produced Value.
	Rule string `json:"rule"`
}

// String returns the identifier value.
func (c Candidate) String() string {
	return c.Value
}

// ProbeOutcome records one fetch-and-classify attempt for one candidate.
// It is created once per attempt by the probe client and never modified.
type ProbeOutcome struct {
	// Candidate is the identifier that was probed.
	Candidate Candidate `json:"candidate"`

	// URL is the canonical profile URL that was fetched.
	URL string `json:"url"`

	// Classification is the verdict for this attempt.
	Classification Classification `json:"classification"`

	// Reason names the signal that decided Classification, for example
	// `not-found marker: title "Page Not Found"` or `status 429`.
	Reason string `json:"reason,omitempty"`

	// HTTPStatus is the transport status. Zero means the provider could not
	// observe one (browser fetches of cached documents, transport failures).
	HTTPStatus int `json:"httpStatus,omitempty"`

	// Ready reports the provider's ready signal for the fetched page, such as
	// a wait-for selector having appeared.
	Ready bool `json:"ready"`

	// Attempt is 1 for the first probe of a candidate and increases on
	// escalation retries.
	Attempt int `json:"attempt"`

	// Error carries the transport failure text for TransportError outcomes.
	Error string `json:"error,omitempty"`

	// Timestamp is when the attempt completed.
	Timestamp time.Time `json:"timestamp"`

	// RawContent is the fetched body. It is handed to extraction and is not
	// serialized into reports.
	RawContent string `json:"-"`
}

// HasStatus reports whether a transport status was observed.
func (o ProbeOutcome) HasStatus() bool {
	return o.HTTPStatus != 0
}

// IsFound reports whether the outcome confirms a profile.
func (o ProbeOutcome) IsFound() bool {
	return o.Classification == ClassificationFound
}

// Summary counts outcomes per classification.
type Summary struct {
	Found          int `json:"found"`
	NotFound       int `json:"notFound"`
	Blocked        int `json:"blocked"`
	TransportError int `json:"transportError"`
}

// Add counts one outcome of the given classification.
func (s *Summary) Add(c Classification) {
	switch c {
	case ClassificationFound:
		s.Found++
	case ClassificationNotFound:
		s.NotFound++
	case ClassificationBlocked:
		s.Blocked++
	default:
		s.TransportError++
	}
}

// Total returns the number of counted outcomes.
func (s Summary) Total() int {
	return s.Found + s.NotFound + s.Blocked + s.TransportError
}
