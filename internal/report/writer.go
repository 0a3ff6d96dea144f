package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/phoneprobe/internal/model"
)

// Writer defines the interface for report output.
// Implementations write search results in various formats.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *Report) (int, error)
}

// Report is the set of sessions produced by one invocation.
type Report struct {
	// Sessions are the finished sessions, in input order.
	Sessions []*model.SearchSession

	// SingleTarget is set when the platform looks up the full number, so a
	// search yields at most one record.
	SingleTarget bool

	// GeneratedAt is when the report was assembled.
	GeneratedAt time.Time
}

// New creates a Report for sessions.
func New(singleTarget bool, sessions ...*model.SearchSession) *Report {
	return &Report{
		Sessions:     sessions,
		SingleTarget: singleTarget,
		GeneratedAt:  time.Now(),
	}
}

// Records returns the records of every session in order.
func (r *Report) Records() []model.ProfileRecord {
	records := make([]model.ProfileRecord, 0)
	for _, s := range r.Sessions {
		records = append(records, s.Records...)
	}
	return records
}

// Summary returns the outcome counts over every session.
func (r *Report) Summary() model.Summary {
	var total model.Summary
	for _, s := range r.Sessions {
		total.Found += s.Summary.Found
		total.NotFound += s.Summary.NotFound
		total.Blocked += s.Summary.Blocked
		total.TransportError += s.Summary.TransportError
	}
	return total
}

// MultiWriter writes to multiple Writers in turn.
// This is useful for writing a workbook while printing JSON.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// target returns how a session target is displayed.
func target(s *model.SearchSession) string {
	if s.Target == "" {
		return "-"
	}
	return s.Target.Masked()
}

// statusText describes how a session ended.
func statusText(s *model.SearchSession) string {
	switch {
	case s.State == model.StateAborted:
		return "aborted: " + s.ErrorMessage
	case s.Interrupted:
		return "interrupted (partial results)"
	case s.Stopped:
		return "stopped after blocking (partial results)"
	default:
		return "complete"
	}
}

// formatValue renders a field value for text formats. Counters decoded
// from JSON arrive as float64 and are printed without exponent.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// fieldColumns returns the canonical fields present in at least one
// record, in canonical order.
func fieldColumns(records []model.ProfileRecord) []string {
	present := make(map[string]bool)
	for _, r := range records {
		for name := range r.Fields {
			present[name] = true
		}
	}
	columns := make([]string, 0, len(present))
	for _, name := range model.CanonicalFields {
		if present[name] {
			columns = append(columns, name)
		}
	}
	return columns
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
