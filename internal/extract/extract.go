// Package extract turns the content of a Found page into a ProfileRecord
// by applying a per-platform Schema with one generic engine.
//
// Extraction has two stages: locate and decode the embedded structured-data
// block, then map known paths into canonical fields. A failure in either
// stage downgrades the record to existence-only; it never fails the search.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/titanous/json5"

	"github.com/nao1215/phoneprobe/internal/model"
	"github.com/nao1215/phoneprobe/internal/page"
)

// Extractor applies one Schema.
type Extractor struct {
	platform string
	schema   Schema
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used to report degraded records.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor for the named platform.
func New(platform string, schema Schema, opts ...Option) *Extractor {
	e := &Extractor{
		platform: platform,
		schema:   schema,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Extract builds the record for a Found outcome from its raw content.
func (e *Extractor) Extract(outcome model.ProbeOutcome) model.ProfileRecord {
	doc, err := page.Parse(outcome.RawContent)
	if err != nil {
		return e.degrade(outcome, &model.ParseError{Stage: "block", Err: err})
	}
	return e.ExtractDocument(outcome, doc)
}

// ExtractDocument builds the record from an already parsed page.
func (e *Extractor) ExtractDocument(outcome model.ProbeOutcome, doc *page.Document) model.ProfileRecord {
	if e.schema.IsZero() {
		return model.NewExistenceOnlyRecord(e.platform, outcome, nil)
	}

	var (
		fields model.Fields
		err    error
	)
	if e.schema.Block != nil {
		fields, err = e.fromBlock(doc)
	} else {
		fields, err = e.fromDOM(doc)
	}
	if err != nil {
		return e.degrade(outcome, err)
	}

	return model.ProfileRecord{
		Platform:           e.platform,
		Candidate:          outcome.Candidate.Value,
		Rule:               outcome.Candidate.Rule,
		ProfileURL:         outcome.URL,
		ExistenceConfirmed: true,
		ExtractionComplete: true,
		Fields:             fields,
	}
}

func (e *Extractor) degrade(outcome model.ProbeOutcome, err error) model.ProfileRecord {
	e.logger.Debug("extraction degraded to existence-only",
		"platform", e.platform,
		"candidate", outcome.Candidate.Value,
		"error", err,
	)
	return model.NewExistenceOnlyRecord(e.platform, outcome, err)
}

// fromBlock runs both stages against the embedded data block.
// A block decoding to an array is treated as a list of documents, each
// tried in turn.
func (e *Extractor) fromBlock(doc *page.Document) (model.Fields, error) {
	block := e.schema.Block

	sel := doc.Find(block.Selector)
	if sel.Length() == 0 {
		return nil, &model.ParseError{
			Stage: "block",
			Err:   fmt.Errorf("no element matches %q", block.Selector),
		}
	}

	var lastErr error
	for i := range sel.Length() {
		text := strings.TrimSpace(sel.Eq(i).Text())

		var data any
		if err := json5.Unmarshal([]byte(text), &data); err != nil {
			lastErr = &model.ParseError{Stage: "block", Err: err}
			continue
		}

		docs := []any{data}
		if arr, ok := data.([]any); ok {
			docs = arr
		}
		for _, d := range docs {
			root, err := e.locateRoot(d)
			if err != nil {
				lastErr = err
				continue
			}
			return e.mapPaths(root), nil
		}
	}
	if lastErr == nil {
		lastErr = &model.ParseError{Stage: "root", Err: errors.New("block holds no documents")}
	}
	return nil, lastErr
}

// locateRoot resolves the block root and checks required keys.
func (e *Extractor) locateRoot(data any) (map[string]any, error) {
	block := e.schema.Block

	v, ok := block.Root.resolve(data)
	if !ok {
		return nil, &model.ParseError{
			Stage: "root",
			Err:   fmt.Errorf("root %s not found", strings.Join(block.Root, " > ")),
		}
	}
	root, ok := v.(map[string]any)
	if !ok {
		return nil, &model.ParseError{Stage: "root", Err: fmt.Errorf("root is %T, not an object", v)}
	}
	for _, key := range block.Required {
		if val, ok := root[key]; !ok || val == nil {
			return nil, &model.ParseError{Stage: "root", Err: fmt.Errorf("required key %q missing", key)}
		}
	}
	return root, nil
}

// mapPaths copies every resolvable field. Values keep their decoded type;
// unresolvable or null paths leave the field absent.
func (e *Extractor) mapPaths(root map[string]any) model.Fields {
	fields := make(model.Fields, len(e.schema.Fields))
	for name, rule := range e.schema.Fields {
		v, ok := rule.Path.resolve(root)
		if !ok || v == nil {
			continue
		}
		if str, ok := v.(string); ok && rule.TrimPrefix != "" {
			v = strings.TrimPrefix(str, rule.TrimPrefix)
		}
		fields[name] = v
	}
	return fields
}

// fromDOM reads fields straight from rendered elements.
func (e *Extractor) fromDOM(doc *page.Document) (model.Fields, error) {
	if e.schema.RootSelector != "" && !doc.Has(e.schema.RootSelector) {
		return nil, &model.ParseError{
			Stage: "root",
			Err:   fmt.Errorf("no element matches %q", e.schema.RootSelector),
		}
	}

	fields := make(model.Fields, len(e.schema.Fields))
	for name, rule := range e.schema.Fields {
		s := doc.Find(rule.Selector).First()
		if s.Length() == 0 {
			continue
		}

		var value string
		if rule.Attr != "" {
			attr, ok := s.Attr(rule.Attr)
			if !ok {
				continue
			}
			value = attr
		} else {
			value = strings.TrimSpace(s.Text())
		}
		value = strings.TrimPrefix(value, rule.TrimPrefix)
		if value == "" {
			continue
		}
		fields[name] = value
	}
	return fields, nil
}
