package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations[v] upgrades a version-v log to version v+1. schema.sql only
// creates missing tables, so every index added after the first release is
// also listed here.
var migrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_test_runs_dependency ON test_runs(dependency_id, tested_at)`,
}

// Store is the durable evaluation log. It implements engine.Recorder.
//
// A Store is safe for concurrent use. The pool holds a single connection,
// so writes are serialized in the order they reach database/sql and a
// reader never observes half of a pass: WritePass commits a pass and its
// children in one transaction.
//
// Rows are append-only. Nothing updates or deletes a recorded pass, and
// passes are ordered by seq, never by wall-clock time.
type Store struct {
	db *sql.DB
}

// Open opens the log at path, creating the file if needed, and brings its
// schema up to date. Opening an existing log again is safe.
//
// The schema version lives in PRAGMA user_version. A log written by a newer
// build is refused rather than read with columns this build does not know.
// WAL mode lets another process read the log (formdeps history) while a
// long-running formdeps run keeps appending.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer, and reads load child rows only after the pass cursor is
	// closed.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// dsn passes the pragmas as go-sqlite3 connection parameters so a
// reopened connection gets them too.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return path + "?" + q.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build supports (%d)", version, len(migrations))
	}
	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version == len(migrations) {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// verifyPragma reports an error unless PRAGMA name reads back expected.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, want %q", name, value, expected)
	}
	return nil
}
