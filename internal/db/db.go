// Package db is the persistence boundary for Agentty: projects, sessions,
// session operations (the operations log), and settings. It is backed by
// SQLite through the pure-Go modernc.org/sqlite driver so the binary stays
// a single self-contained executable with no cgo dependency.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection pool and exposes the schema described in
// spec §6: projects, sessions, session_operations, settings.
type DB struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	git_branch TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	project_id INTEGER NOT NULL,
	agent TEXT NOT NULL,
	model TEXT NOT NULL,
	base_branch TEXT NOT NULL,
	status TEXT NOT NULL,
	prompt TEXT NOT NULL,
	title TEXT,
	summary TEXT,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	permission_mode TEXT NOT NULL DEFAULT 'auto_edit',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS session_operations (
	op_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	state TEXT NOT NULL,
	cancel_requested INTEGER NOT NULL DEFAULT 0,
	failure_reason TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_operations_session_id
	ON session_operations(session_id);

CREATE TABLE IF NOT EXISTS settings (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; keep one connection.

	database := &DB{conn: conn}
	if err := database.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return database, nil
}

// OpenInMemory opens a throwaway in-memory database, used by tests.
func OpenInMemory(ctx context.Context) (*DB, error) {
	return Open(ctx, "file::memory:?cache=shared")
}

func (d *DB) migrate(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	return nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}
