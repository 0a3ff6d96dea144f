package model

import "maps"

// Canonical profile field names shared by every platform schema.
const (
	FieldUsername    = "username"
	FieldDisplayName = "displayName"
	FieldBio         = "bio"
	FieldAvatarURL   = "avatarUrl"
	FieldVerified    = "verified"
	FieldPrivate     = "private"
	FieldFollowers   = "followers"
	FieldFollowing   = "following"
	FieldLikes       = "likes"
	FieldPosts       = "posts"
)

// CanonicalFields lists the canonical field names in report column order.
var CanonicalFields = []string{
	FieldUsername,
	FieldDisplayName,
	FieldBio,
	FieldAvatarURL,
	FieldVerified,
	FieldPrivate,
	FieldFollowers,
	FieldFollowing,
	FieldLikes,
	FieldPosts,
}

// Fields maps canonical field names to values copied from the platform page.
// Values are opaque: counters keep whatever type and precision the platform
// used, and a field the page did not carry is simply absent.
type Fields map[string]any

// ProfileRecord is the result of extraction for one Found outcome.
type ProfileRecord struct {
	// Platform is the platform name the record belongs to.
	Platform string `json:"platform"`

	// Candidate is the identifier the profile was found under.
	Candidate string `json:"candidate"`

	// Rule is the generation rule that produced Candidate.
	Rule string `json:"rule,omitempty"`

	// ProfileURL is the canonical URL of the profile.
	ProfileURL string `json:"profileUrl,omitempty"`

	// ExistenceConfirmed is true for every record: records are only built
	// from Found outcomes.
	ExistenceConfirmed bool `json:"existenceConfirmed"`

	// ExtractionComplete is false for existence-only records.
	ExtractionComplete bool `json:"extractionComplete"`

	// Fields holds the extracted attributes.
	Fields Fields `json:"fields,omitempty"`

	// ExtractionError describes why structured extraction failed.
	ExtractionError string `json:"extractionError,omitempty"`
}

// NewExistenceOnlyRecord returns a record that confirms the profile exists
// but carries no structured detail.
func NewExistenceOnlyRecord(platform string, outcome ProbeOutcome, cause error) ProfileRecord {
	r := ProfileRecord{
		Platform:           platform,
		Candidate:          outcome.Candidate.Value,
		Rule:               outcome.Candidate.Rule,
		ProfileURL:         outcome.URL,
		ExistenceConfirmed: true,
		ExtractionComplete: false,
	}
	if cause != nil {
		r.ExtractionError = cause.Error()
	}
	return r
}

// Field returns the value of a canonical field.
func (r ProfileRecord) Field(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// CloneFields returns a copy of the record's fields that callers may modify.
func (r ProfileRecord) CloneFields() Fields {
	if r.Fields == nil {
		return nil
	}
	return maps.Clone(r.Fields)
}
