// Package sqlite is the SQLite-backed implementation of store.Store, built
// on the pure-Go ncruces/go-sqlite3 driver so git-pkgs ships as a single
// static binary with no cgo dependency.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStorage is the concrete store.Store implementation.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// New opens (creating if necessary) the store file at dbPath, runs pending
// migrations, and returns a ready-to-use store. dbPath may be ":memory:" or
// "" for a non-persistent, shared-cache in-memory store.
func New(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)
	if dbPath == ":memory:" || dbPath == "" {
		dsn = "file::memory:?mode=memory&cache=shared&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", dbPath, err)
	}

	// A single writer connection avoids SQLITE_BUSY storms under the
	// Indexer's single-writer lock (§4.5); readers (CLI query commands) open
	// their own SQLiteStorage against the same file and are unaffected.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path the store was opened with.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// UnderlyingDB exposes the raw *sql.DB for callers (doctor-style diagnostic
// commands, PRAGMA integrity checks) that need it directly.
func (s *SQLiteStorage) UnderlyingDB() *sql.DB {
	return s.db
}

// SetBulkWriteMode relaxes durability PRAGMAs during a large Init pass (§5)
// and restores the durable defaults afterward. Safe to call repeatedly.
func (s *SQLiteStorage) SetBulkWriteMode(ctx context.Context, enabled bool) error {
	synchronous := "FULL"
	if enabled {
		synchronous = "OFF"
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA synchronous=%s", synchronous)); err != nil {
		return fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	return nil
}

// SchemaVersion returns the store's current schema_version config value.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	value, ok, err := s.GetConfig(ctx, "schema_version")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	var version int
	if _, err := fmt.Sscanf(value, "%d", &version); err != nil {
		return 0, fmt.Errorf("malformed schema_version %q: %w", value, err)
	}
	return version, nil
}

// SetConfig upserts a key/value pair in the config table.
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return wrapDBError("set config", err)
	}
	return nil
}

// GetConfig reads a config value. ok is false if the key is unset.
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapDBError("get config", err)
	}
	return value, true, nil
}

// beginImmediateWithRetry begins an IMMEDIATE transaction on conn, retrying
// with linear backoff if another connection currently holds the write lock
// (SQLITE_BUSY). IMMEDIATE acquires the write lock up front rather than at
// the first write statement, so two writers can't both start a deferred
// transaction, run their read phase, and then deadlock in their write phase.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, retries int, backoff time.Duration) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		lastErr = err
		if !isBusyErr(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt+1)):
		}
	}
	return fmt.Errorf("database locked after %d retries: %w", retries, lastErr)
}

// isBusyErr reports whether err is SQLite's "database is locked"/"busy"
// condition, which is worth retrying, as opposed to a real schema or
// constraint error, which is not.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// wrapDBError annotates a failure with the phase it occurred in, so a
// caller inspecting a returned error can tell which part of a multi-phase
// transaction failed without needing a stack trace.
func wrapDBError(phase string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", phase, err)
}
