package extract

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema is returned by Schema.Validate.
var ErrInvalidSchema = errors.New("invalid extraction schema")

// Block locates the embedded structured-data element of a page.
type Block struct {
	// Selector matches the element holding the data, usually a script tag
	// such as `script[type='application/ld+json']`. When several elements
	// match, the first one that decodes and carries the root is used.
	Selector string `yaml:"selector"`

	// Root is the path from the decoded document to the object fields are
	// read from. Empty means the document itself.
	Root Path `yaml:"root,omitempty"`

	// Required lists keys that must be present under Root. Missing keys
	// fail extraction.
	Required []string `yaml:"required,omitempty"`
}

// FieldRule maps one canonical field.
//
// With a structured Block, Path is resolved against the block root. For
// DOM-only schemas Selector picks an element and Attr (or its text when
// Attr is empty) is the value.
type FieldRule struct {
	// Path is resolved against the block root.
	Path Path `yaml:"path,omitempty"`

	// Selector is a CSS selector for DOM-only schemas.
	Selector string `yaml:"selector,omitempty"`

	// Attr is the attribute read from the selected element.
	Attr string `yaml:"attr,omitempty"`

	// TrimPrefix is removed from string values (e.g. "@" before handles).
	TrimPrefix string `yaml:"trimPrefix,omitempty"`
}

// Schema describes how to turn a Found page into profile fields.
type Schema struct {
	// Block is the embedded structured-data element. Nil selects DOM-only
	// extraction.
	Block *Block `yaml:"block,omitempty"`

	// RootSelector must match for DOM-only extraction to proceed.
	RootSelector string `yaml:"rootSelector,omitempty"`

	// Fields maps canonical field names to rules.
	Fields map[string]FieldRule `yaml:"fields,omitempty"`
}

// IsZero reports whether the schema extracts nothing. Pages of platforms
// with a zero schema always yield existence-only records.
func (s Schema) IsZero() bool {
	return s.Block == nil && s.RootSelector == "" && len(s.Fields) == 0
}

// Validate checks the schema for rules that can never resolve.
func (s Schema) Validate() error {
	if s.IsZero() {
		return nil
	}
	if s.Block != nil && s.Block.Selector == "" {
		return fmt.Errorf("%w: block selector is empty", ErrInvalidSchema)
	}
	for name, rule := range s.Fields {
		switch {
		case s.Block != nil && len(rule.Path) == 0:
			return fmt.Errorf("%w: field %q has no path", ErrInvalidSchema, name)
		case s.Block == nil && rule.Selector == "":
			return fmt.Errorf("%w: field %q has no selector", ErrInvalidSchema, name)
		}
		for _, seg := range rule.Path {
			if _, err := parseSegment(seg); err != nil {
				return fmt.Errorf("%w: field %q: %v", ErrInvalidSchema, name, err)
			}
		}
	}
	if s.Block != nil {
		for _, seg := range s.Block.Root {
			if _, err := parseSegment(seg); err != nil {
				return fmt.Errorf("%w: root: %v", ErrInvalidSchema, err)
			}
		}
	}
	return nil
}
