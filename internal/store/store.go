package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// authorCacheTTL is how long a cached author profile counts as fresh. Rows
// older than this are treated as absent, not deleted.
const authorCacheTTL = 24 * time.Hour

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema and seeds the singleton state row
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS replies (
		candidate_id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		author_handle TEXT NOT NULL,
		text TEXT NOT NULL,
		candidate_created_at DATETIME,
		reply_id TEXT,
		success BOOLEAN NOT NULL,
		error TEXT,
		task_id TEXT,
		generation_ms INTEGER,
		artifact_size INTEGER,
		template_index INTEGER,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bot_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		daily_count INTEGER NOT NULL DEFAULT 0,
		last_reply_at DATETIME,
		daily_reset_at DATETIME NOT NULL,
		breaker_state TEXT NOT NULL DEFAULT 'closed',
		breaker_failures INTEGER NOT NULL DEFAULT 0,
		breaker_opened_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS author_cache (
		author_id TEXT PRIMARY KEY,
		handle TEXT NOT NULL,
		name TEXT,
		followers INTEGER NOT NULL,
		following INTEGER NOT NULL,
		verified BOOLEAN NOT NULL,
		refreshed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_replies_author_created ON replies(author_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_replies_created ON replies(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// First startup: the singleton row starts with a zero daily count and a
	// reset boundary at the next midnight.
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO bot_state (id, daily_count, daily_reset_at)
		VALUES (1, 0, ?)
	`, nextMidnight(time.Now()))
	return err
}

// nextMidnight returns the first midnight after t in t's location.
func nextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
