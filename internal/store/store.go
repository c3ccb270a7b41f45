package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store configuration constants.
const (
	// dirPermissions is the permission mode for the state directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the state file.
	filePermissions = 0600

	// busyTimeout is the maximum time to wait for a database lock.
	busyTimeout = 5 * time.Second

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second
)

// schema creates the two state tables. Executed on every open; both
// statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS pending_update (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	uuid       TEXT NOT NULL,
	url        TEXT NOT NULL,
	slot       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	interface TEXT NOT NULL,
	path      TEXT NOT NULL,
	payload   BLOB NOT NULL,
	queued_at TEXT NOT NULL
);
`

// Store wraps the agent state database.
//
// It holds the pending update record (written before an update reboot so the
// next boot can report the outcome) and the outbox of publications that could
// not be delivered and are flushed on reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use; SQLite serialises writes
//     through the single pooled connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the state database connection.
//
// It performs the following setup:
//  1. Creates the state directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout
//  4. Sets file permissions (0600)
//  5. Verifies the connection and creates the schema
//
// Parameters:
//   - path: Filesystem path of the state file
//
// Returns:
//   - *Store: Connected store
//   - error: If connection or schema setup fails
func Open(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	// Build connection string with pragmas
	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf(
		"file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
		path,
		busyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	// SQLite only supports one writer; keep the pool at a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:   db,
		path: path,
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying state database connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating state schema: %w", err)
	}

	// Owner read/write only; the file holds delivery payloads
	_ = os.Chmod(path, filePermissions) //nolint:errcheck // First run may create the file after this point

	return s, nil
}

// Close closes the state database.
//
// Returns:
//   - error: If closing fails
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing state database: %w", err)
	}
	return nil
}

// Path returns the filesystem path of the state file.
func (s *Store) Path() string {
	return s.path
}

// HealthCheck verifies the state database is accessible.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Store) HealthCheck(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("state database health check failed: %w", err)
	}
	return nil
}
