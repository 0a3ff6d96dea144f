package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/phoneprobe/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "history.db"

// ErrSessionNotFound is returned when no stored session has the given ID.
var ErrSessionNotFound = errors.New("session not found")

// HistoryDB stores finished search sessions.
//
// Design decision: Phone numbers are never stored in clear. A session row
// keys its target by SHA3-256 digest and keeps only the masked number for
// display; the number is also masked inside the stored session document.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging, which lets a history listing run
	// while a batch search writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		target_hash TEXT NOT NULL,
		target_masked TEXT NOT NULL,
		state TEXT NOT NULL,
		found INTEGER NOT NULL DEFAULT 0,
		not_found INTEGER NOT NULL DEFAULT 0,
		blocked INTEGER NOT NULL DEFAULT 0,
		transport_error INTEGER NOT NULL DEFAULT 0,
		interrupted INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		session_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_target ON sessions(target_hash);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// HashTarget returns the hex SHA3-256 digest of the normalized number.
func HashTarget(target model.PhoneNumber) string {
	sum := sha3.Sum256([]byte(target.String()))
	return hex.EncodeToString(sum[:])
}

// SaveSession stores a session, replacing an earlier row with the same ID.
func (h *HistoryDB) SaveSession(ctx context.Context, s *model.SearchSession) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	masked := s.Target.Masked()
	stored := string(doc)
	if s.Target != "" {
		stored = strings.ReplaceAll(stored, s.Target.String(), masked)
	}

	query := `
	INSERT INTO sessions (id, platform, target_hash, target_masked, state,
		found, not_found, blocked, transport_error, interrupted,
		started_at, finished_at, session_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		state = excluded.state,
		found = excluded.found,
		not_found = excluded.not_found,
		blocked = excluded.blocked,
		transport_error = excluded.transport_error,
		interrupted = excluded.interrupted,
		finished_at = excluded.finished_at,
		session_json = excluded.session_json
	`

	var finished any
	if !s.FinishedAt.IsZero() {
		finished = s.FinishedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = h.db.ExecContext(ctx, query,
		s.ID,
		s.Platform,
		HashTarget(s.Target),
		masked,
		s.State.String(),
		s.Summary.Found,
		s.Summary.NotFound,
		s.Summary.Blocked,
		s.Summary.TransportError,
		s.Interrupted,
		s.StartedAt.UTC().Format(time.RFC3339Nano),
		finished,
		stored,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SessionMetadata is a stored session without its outcomes and records.
type SessionMetadata struct {
	ID           string
	Platform     string
	TargetMasked string
	State        string
	Summary      model.Summary
	Interrupted  bool
	StartedAt    time.Time
	FinishedAt   time.Time
}

// ListSessions returns the metadata of the newest sessions first. A
// non-positive limit returns every session.
func (h *HistoryDB) ListSessions(ctx context.Context, limit int) ([]SessionMetadata, error) {
	query := metadataQuery + ` ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return h.queryMetadata(ctx, query, args...)
}

// FindByTarget returns the sessions of one phone number, newest first.
func (h *HistoryDB) FindByTarget(ctx context.Context, target model.PhoneNumber) ([]SessionMetadata, error) {
	query := metadataQuery + ` WHERE target_hash = ? ORDER BY started_at DESC`
	return h.queryMetadata(ctx, query, HashTarget(target))
}

const metadataQuery = `
	SELECT id, platform, target_masked, state, found, not_found, blocked,
		transport_error, interrupted, started_at, finished_at
	FROM sessions`

func (h *HistoryDB) queryMetadata(ctx context.Context, query string, args ...any) ([]SessionMetadata, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	results := make([]SessionMetadata, 0)
	for rows.Next() {
		var (
			meta     SessionMetadata
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Platform, &meta.TargetMasked, &meta.State,
			&meta.Summary.Found, &meta.Summary.NotFound, &meta.Summary.Blocked,
			&meta.Summary.TransportError, &meta.Interrupted, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		if finished.Valid {
			meta.FinishedAt = parseTimestamp(finished.String)
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetSession returns the stored session with the given ID. The target of
// the returned session is the masked number.
func (h *HistoryDB) GetSession(ctx context.Context, id string) (*model.SearchSession, error) {
	var doc string
	err := h.db.QueryRowContext(ctx, `SELECT session_json FROM sessions WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s model.SearchSession
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &s, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a stored timestamp, returning the zero time when no
// format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
