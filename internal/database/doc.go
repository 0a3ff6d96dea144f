// Package database provides SQLite-based search history for phoneprobe.
//
// Every finished search session is stored with its summary counters and
// the full session document (candidates, outcomes, records), so earlier
// results can be listed and re-rendered without probing again.
//
// Design decision: SQLite (via modernc.org/sqlite) keeps the history in one
// CGO-free file under the XDG data directory. Phone numbers are stored as a
// SHA3-256 digest plus a masked form, never in clear.
package database
