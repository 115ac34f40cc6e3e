// ABOUTME: SQLite-backed audit store using modernc.org/sqlite
// ABOUTME: Records tool invocations with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the tool invocation audit log.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tool_invocations (
			invocation_id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			org_id TEXT,
			workspace_id TEXT,
			outcome TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			ts TIMESTAMP NOT NULL,
			detail TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_invocations_subject ON tool_invocations(subject_id);
		CREATE INDEX IF NOT EXISTS idx_invocations_tool ON tool_invocations(tool_name);
		CREATE INDEX IF NOT EXISTS idx_invocations_ts ON tool_invocations(ts);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
