// Package archive persists cleared sessions to a local SQLite database
// and compresses their journal segments for long-term storage.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/parley/internal/session"
	"github.com/user/parley/pkg/backend"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	cleared_at INTEGER NOT NULL,
	raw_transcript TEXT NOT NULL,
	enhanced_transcript TEXT NOT NULL,
	analyses TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_cleared_at ON sessions(cleared_at);
`

// Store provides access to the archived-sessions SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive database with WAL.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Row is one archived session.
type Row struct {
	ID            string
	StartedAt     time.Time
	ClearedAt     time.Time
	RawTranscript string
	Enhanced      string
	Analyses      []backend.CombinedAnalysis
}

// ArchiveSession inserts a cleared session's snapshot. Session ids are
// unique; inserting the same id twice is an error.
func (s *Store) ArchiveSession(ctx context.Context, snap session.Snapshot) error {
	analyses, err := json.Marshal(snap.Analyses)
	if err != nil {
		return fmt.Errorf("marshal analyses: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, cleared_at, raw_transcript, enhanced_transcript, analyses)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(snap.ID), snap.StartedAt.Unix(), snap.ClearedAt.Unix(),
		snap.RawTranscript, snap.Enhanced, string(analyses))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// List returns all archived sessions, most recently cleared first.
func (s *Store) List(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, cleared_at, raw_transcript, enhanced_transcript, analyses
		FROM sessions
		ORDER BY cleared_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// Get returns one archived session, or nil if the id is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Row, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, cleared_at, raw_transcript, enhanced_transcript, analyses
		FROM sessions
		WHERE id = ?
	`, id)

	out, err := scanRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (*Row, error) {
	var row Row
	var startedAt, clearedAt int64
	var analyses string
	if err := sc.Scan(&row.ID, &startedAt, &clearedAt,
		&row.RawTranscript, &row.Enhanced, &analyses); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	row.StartedAt = time.Unix(startedAt, 0).UTC()
	row.ClearedAt = time.Unix(clearedAt, 0).UTC()
	if analyses != "" && analyses != "null" {
		if err := json.Unmarshal([]byte(analyses), &row.Analyses); err != nil {
			return nil, fmt.Errorf("unmarshal analyses: %w", err)
		}
	}
	return &row, nil
}
