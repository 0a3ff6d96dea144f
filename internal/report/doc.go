// Package report renders search sessions.
//
// This package contains writers for different output formats:
//   - JSONWriter: newline-free JSON for tool integration (the default)
//   - MarkdownWriter: a shareable document with summary tables
//   - TableWriter: aligned text tables for terminal display
//   - XLSXWriter: a workbook with records, outcomes and sessions sheets
//
// Design decision: Report writing is kept apart from the session model so
// output formats can be added without touching the pipeline. Writers
// implement the Writer interface and can be composed with MultiWriter.
//
// Human-oriented formats show phone numbers masked to their last four
// digits. The JSON document of a single search carries only the profile
// records, which never include the searched number.
package report
