// Package candidate derives platform identifiers from a phone number.
//
// Generation is a pure function of the phone number and an ordered rule
// list: the same input always yields the same candidates in the same order,
// with duplicates removed at the position of their first production.
package candidate

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nao1215/phoneprobe/internal/model"
)

// DefaultMinDigits is the minimum digit count when no platform override is set.
const DefaultMinDigits = 8

// DefaultMaxDigits is the E.164 maximum length of a phone number.
const DefaultMaxDigits = 15

// ErrNoRules is returned by Generate when the generator has no rules.
var ErrNoRules = errors.New("candidate: no generation rules configured")

// Rule turns a phone number into one candidate: the trailing Length digits
// wrapped in an optional literal Prefix and Suffix.
type Rule struct {
	// Name identifies the rule in results. When empty a name is derived
	// from the other fields (e.g. "eu-last-8").
	Name string `yaml:"name,omitempty"`

	// Length is the number of trailing digits used. Zero means the full
	// number.
	Length int `yaml:"length"`

	// Prefix is prepended to the digits.
	Prefix string `yaml:"prefix,omitempty"`

	// Suffix is appended to the digits.
	Suffix string `yaml:"suffix,omitempty"`
}

// RuleName returns Name, or a name derived from the rule's fields.
func (r Rule) RuleName() string {
	if r.Name != "" {
		return r.Name
	}
	name := "full"
	if r.Length > 0 {
		name = "last-" + strconv.Itoa(r.Length)
	}
	if r.Prefix != "" {
		name = r.Prefix + "-" + name
	}
	if r.Suffix != "" {
		name += "-" + r.Suffix
	}
	return name
}

// Apply returns the candidate value for p.
func (r Rule) Apply(p model.PhoneNumber) string {
	return r.Prefix + p.Last(r.Length) + r.Suffix
}

// Generator applies an ordered rule list to phone numbers.
// A Generator holds no per-search state and is safe for concurrent use.
type Generator struct {
	rules     []Rule
	minDigits int
	maxDigits int
	prefix    string
}

// Option configures a Generator.
type Option func(*Generator)

// WithMinDigits sets the minimum number of digits a phone number must have.
func WithMinDigits(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.minDigits = n
		}
	}
}

// WithMaxDigits sets the maximum number of digits a phone number may have.
func WithMaxDigits(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxDigits = n
		}
	}
}

// WithRequiredPrefix rejects numbers that do not start with prefix, such
// as a country code for platforms that only accept full international
// numbers.
func WithRequiredPrefix(prefix string) Option {
	return func(g *Generator) {
		g.prefix = prefix
	}
}

// NewGenerator creates a Generator. The rule slice is copied.
func NewGenerator(rules []Rule, opts ...Option) *Generator {
	g := &Generator{
		rules:     append([]Rule(nil), rules...),
		minDigits: DefaultMinDigits,
		maxDigits: DefaultMaxDigits,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MinDigits returns the configured minimum digit count.
func (g *Generator) MinDigits() int {
	return g.minDigits
}

// Rules returns a copy of the configured rules.
func (g *Generator) Rules() []Rule {
	return append([]Rule(nil), g.rules...)
}

// Generate normalizes raw and derives candidates from it.
func (g *Generator) Generate(raw string) ([]model.Candidate, error) {
	return g.GenerateFrom(model.ParsePhoneNumber(raw))
}

// GenerateFrom derives candidates from an already normalized number.
//
// It returns an empty slice and an *model.InvalidInputError when the number
// has fewer than the minimum or more than the maximum digits, or lacks the
// required prefix. Rules that
// produce a value already seen are skipped, so the result is duplicate-free
// and ordered by first production.
func (g *Generator) GenerateFrom(p model.PhoneNumber) ([]model.Candidate, error) {
	if len(g.rules) == 0 {
		return []model.Candidate{}, ErrNoRules
	}
	if p.Len() < g.minDigits {
		return []model.Candidate{}, &model.InvalidInputError{Digits: p.Len(), MinDigits: g.minDigits}
	}
	if p.Len() > g.maxDigits {
		return []model.Candidate{}, &model.InvalidInputError{
			Digits:    p.Len(),
			MinDigits: g.minDigits,
			Reason:    strconv.Itoa(p.Len()) + " digits exceeds the maximum of " + strconv.Itoa(g.maxDigits),
		}
	}
	if g.prefix != "" && !strings.HasPrefix(p.String(), g.prefix) {
		return []model.Candidate{}, &model.InvalidInputError{
			Digits:    p.Len(),
			MinDigits: g.minDigits,
			Reason:    "number must start with " + g.prefix,
		}
	}

	seen := make(map[string]struct{}, len(g.rules))
	out := make([]model.Candidate, 0, len(g.rules))
	for _, r := range g.rules {
		value := r.Apply(p)
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, model.Candidate{Value: value, Rule: r.RuleName()})
	}
	return out, nil
}

// FromIdentifiers wraps caller-supplied identifiers as candidates, for
// probing known usernames without phone derivation. Empty and duplicate
// identifiers are dropped.
func FromIdentifiers(identifiers []string) []model.Candidate {
	seen := make(map[string]struct{}, len(identifiers))
	out := make([]model.Candidate, 0, len(identifiers))
	for _, id := range identifiers {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, model.Candidate{Value: id, Rule: "given"})
	}
	return out
}
