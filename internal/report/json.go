package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/phoneprobe/internal/model"
)

// JSONWriter outputs reports in JSON format.
//
// A report of one session is written as that session's record list, or as
// the single record (null when absent) for single-target platforms. A batch
// report is a list with one entry per session.
//
// By default the document is compact and carries no newline at all.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// sessionDocument is one batch entry.
type sessionDocument struct {
	ID          string                `json:"id"`
	Platform    string                `json:"platform"`
	Target      string                `json:"target"`
	State       model.SessionState    `json:"state"`
	Summary     model.Summary         `json:"summary"`
	Interrupted bool                  `json:"interrupted,omitempty"`
	Stopped     bool                  `json:"stopped,omitempty"`
	Error       string                `json:"error,omitempty"`
	Records     []model.ProfileRecord `json:"records"`
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *Report) (int, error) {
	return w.writeJSON(w.document(report))
}

func (w *JSONWriter) document(report *Report) any {
	if len(report.Sessions) == 1 {
		s := report.Sessions[0]
		if report.SingleTarget {
			if len(s.Records) == 0 {
				return nil
			}
			return s.Records[0]
		}
		return records(s)
	}

	docs := make([]sessionDocument, 0, len(report.Sessions))
	for _, s := range report.Sessions {
		docs = append(docs, sessionDocument{
			ID:          s.ID,
			Platform:    s.Platform,
			Target:      target(s),
			State:       s.State,
			Summary:     s.Summary,
			Interrupted: s.Interrupted,
			Stopped:     s.Stopped,
			Error:       s.ErrorMessage,
			Records:     records(s),
		})
	}
	return docs
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	return w.output.Write(data)
}

// records returns the session records, never nil.
func records(s *model.SearchSession) []model.ProfileRecord {
	if s.Records == nil {
		return []model.ProfileRecord{}
	}
	return s.Records
}
