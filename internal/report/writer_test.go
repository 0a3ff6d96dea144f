package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/nao1215/phoneprobe/internal/model"
)

// createTestSession creates a finished session with sample data for testing.
func createTestSession(t *testing.T, target string) *model.SearchSession {
	t.Helper()

	s := model.NewSearchSession("instagram", model.ParsePhoneNumber(target))
	for _, state := range []model.SessionState{model.StateGenerating, model.StateAggregated, model.StateDone} {
		if err := s.Transition(state); err != nil {
			t.Fatalf("unexpected transition error: %v", err)
		}
	}

	found := model.Candidate{Value: "eu87654321", Rule: "eu-8"}
	missing := model.Candidate{Value: "87654321", Rule: "last-8"}
	s.Candidates = []model.Candidate{missing, found}
	s.Outcomes = []model.ProbeOutcome{
		{Candidate: missing, URL: "https://www.instagram.com/87654321/", Classification: model.ClassificationNotFound, HTTPStatus: 404, Reason: `not-found marker: title "Page Not Found"`, Attempt: 1},
		{Candidate: found, URL: "https://www.instagram.com/eu87654321/", Classification: model.ClassificationFound, HTTPStatus: 200, Reason: "found markers", Attempt: 1},
	}
	s.Records = []model.ProfileRecord{{
		Platform:           "instagram",
		Candidate:          found.Value,
		Rule:               found.Rule,
		ProfileURL:         "https://www.instagram.com/eu87654321/",
		ExistenceConfirmed: true,
		ExtractionComplete: true,
		Fields: model.Fields{
			model.FieldUsername:    "eu87654321",
			model.FieldDisplayName: "Maria Silva",
			model.FieldFollowers:   float64(1200000),
		},
	}}
	s.Summary = model.Summary{Found: 1, NotFound: 1}
	return s
}

// TestJSONWriter tests the JSON document shapes.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("single session writes the record list", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSession(t, "5511987654321")
		if _, err := NewJSONWriter(&buf).Write(New(false, s)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Contains(buf.String(), "\n") {
			t.Errorf("expected newline-free output, got %q", buf.String())
		}
		var got []model.ProfileRecord
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if diff := cmp.Diff(s.Records, got); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no records is an empty list", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSession(t, "5511987654321")
		s.Records = nil
		if _, err := NewJSONWriter(&buf).Write(New(false, s)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != "[]" {
			t.Errorf("expected [], got %q", buf.String())
		}
	})

	t.Run("single target writes one record", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSession(t, "5511987654321")
		if _, err := NewJSONWriter(&buf).Write(New(true, s)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got model.ProfileRecord
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Candidate != "eu87654321" {
			t.Errorf("expected the single record, got %+v", got)
		}
	})

	t.Run("single target without record is null", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSession(t, "5511987654321")
		s.Records = nil
		if _, err := NewJSONWriter(&buf).Write(New(true, s)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != "null" {
			t.Errorf("expected null, got %q", buf.String())
		}
	})

	t.Run("batch writes one masked entry per session", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		a := createTestSession(t, "5511987654321")
		b := createTestSession(t, "5521912345678")
		if _, err := NewJSONWriter(&buf).Write(New(false, a, b)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got []map[string]any
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(got))
		}
		if got[1]["target"] != "*********5678" {
			t.Errorf("expected masked target, got %v", got[1]["target"])
		}
		if got[0]["state"] != "done" {
			t.Errorf("expected state done, got %v", got[0]["state"])
		}
		if strings.Contains(buf.String(), "5511987654321") {
			t.Error("expected no full number in output")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSession(t, "5511987654321")
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(New(false, s)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  {") {
			t.Errorf("expected indented output, got %s", buf.String())
		}
	})
}

// TestMarkdownWriter tests the Markdown report.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes session sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSession(t, "5511987654321")
		if _, err := NewMarkdownWriter(&buf).Write(New(false, s)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# phoneprobe Report",
			"## instagram: *********4321",
			"### Summary",
			"### Profiles",
			"### Probes",
			"Maria Silva",
			"1200000",
			"```mermaid",
			"[!TIP]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "5511987654321") {
			t.Error("expected target to be masked")
		}
	})

	t.Run("aborted session shows caution", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := model.NewSearchSession("whatsapp", model.ParsePhoneNumber("5511987654321"))
		s.Abort(&model.SessionUnavailableError{Provider: "session", Timeout: time.Minute})
		if _, err := NewMarkdownWriter(&buf).Write(New(true, s)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "[!CAUTION]") {
			t.Errorf("expected caution alert, got:\n%s", output)
		}
		if !strings.Contains(output, "No profiles found.") {
			t.Error("expected empty profiles section")
		}
	})

	t.Run("batch writes overview", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		a := createTestSession(t, "5511987654321")
		b := createTestSession(t, "5521912345678")
		if _, err := NewMarkdownWriter(&buf).Write(New(false, a, b)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "## Overview") {
			t.Error("expected overview section")
		}
	})
}

// TestTableWriter tests the text table report.
func TestTableWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes searches and profiles", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSession(t, "5511987654321")
		if _, err := NewTableWriter(&buf).Write(New(false, s)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{"Searches", "Profiles", "*********4321", "eu87654321", "1200000"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
		if strings.Contains(output, "Probes:") {
			t.Error("expected no probe table without verbose")
		}
	})

	t.Run("verbose adds probes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSession(t, "5511987654321")
		if _, err := NewTableWriter(&buf, WithVerbose(true)).Write(New(false, s)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "not_found") {
			t.Errorf("expected outcome classifications:\n%s", buf.String())
		}
	})
}

// TestXLSXWriter tests the workbook content.
func TestXLSXWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := createTestSession(t, "5511987654321")
	if _, err := NewXLSXWriter(&buf).Write(New(false, s)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	if diff := cmp.Diff([]string{SheetRecords, SheetOutcomes, SheetSessions}, f.GetSheetList()); diff != "" {
		t.Errorf("sheet mismatch (-want +got):\n%s", diff)
	}

	rows, err := f.GetRows(SheetRecords)
	if err != nil {
		t.Fatalf("failed to read records: %v", err)
	}
	if len(rows) != 2 || rows[1][1] != "eu87654321" {
		t.Errorf("unexpected records sheet %v", rows)
	}

	outcomes, err := f.GetRows(SheetOutcomes)
	if err != nil {
		t.Fatalf("failed to read outcomes: %v", err)
	}
	if len(outcomes) != 3 {
		t.Errorf("expected header and 2 outcomes, got %d rows", len(outcomes))
	}

	sessions, err := f.GetRows(SheetSessions)
	if err != nil {
		t.Fatalf("failed to read sessions: %v", err)
	}
	if sessions[1][2] != "*********4321" {
		t.Errorf("expected masked target, got %q", sessions[1][2])
	}
}

// failingWriter always fails.
type failingWriter struct{}

func (failingWriter) Write(*Report) (int, error) {
	return 0, errors.New("write failed")
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		s := createTestSession(t, "5511987654321")
		n, err := NewMultiWriter(NewJSONWriter(&a), NewTableWriter(&b)).Write(New(false, s))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Len() == 0 || b.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
		if n != a.Len()+b.Len() {
			t.Errorf("expected %d bytes, got %d", a.Len()+b.Len(), n)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s := createTestSession(t, "5511987654321")
		_, err := NewMultiWriter(failingWriter{}, NewJSONWriter(&buf)).Write(New(false, s))
		if err == nil {
			t.Error("expected error")
		}
		if buf.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

// TestReportSummary tests totals over sessions.
func TestReportSummary(t *testing.T) {
	t.Parallel()

	a := createTestSession(t, "5511987654321")
	b := createTestSession(t, "5521912345678")
	b.Summary.Blocked = 2
	r := New(false, a, b)

	if diff := cmp.Diff(model.Summary{Found: 2, NotFound: 2, Blocked: 2}, r.Summary()); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if len(r.Records()) != 2 {
		t.Errorf("expected 2 records, got %d", len(r.Records()))
	}
}

// TestFormatValue tests value rendering.
func TestFormatValue(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    any
		expected string
	}{
		{nil, ""},
		{"text", "text"},
		{float64(1200000), "1200000"},
		{float64(1.5), "1.5"},
		{true, "true"},
		{42, "42"},
	}
	for _, tc := range testCases {
		if got := formatValue(tc.input); got != tc.expected {
			t.Errorf("formatValue(%v): expected %q, got %q", tc.input, tc.expected, got)
		}
	}
}

// TestTruncateString tests the string truncation helper.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"não disponível", 6, "não..."},
	}
	for _, tc := range testCases {
		if got := truncateString(tc.input, tc.maxLen); got != tc.expected {
			t.Errorf("truncateString(%q, %d): expected %q, got %q", tc.input, tc.maxLen, tc.expected, got)
		}
	}
}
