// Package sqlite provides the on-device persistence layer backed by a
// single SQLite file. Partitions map to tables: general and sensitive
// key-value rows, the sync queue, offline batches and backup snapshots.
package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	pkgerrors "healthsync/pkg/errors"
)

// Config for opening the store
type Config struct {
	Path     string // Path to the database file
	InMemory bool   // Use an in-memory database (for testing)
}

// Store wraps the SQLite connection shared by the partition stores
type Store struct {
	conn *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS kv_general (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kv_sensitive (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_queue (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	enqueued_at TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	data        BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS offline_batches (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	captured_at TEXT NOT NULL,
	synced      INTEGER NOT NULL DEFAULT 0,
	data        BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	name       TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	data       BLOB NOT NULL
);
`

// Open opens or creates the store and applies the schema
func Open(cfg Config) (*Store, error) {
	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:?cache=shared"
	} else {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, pkgerrors.NewStorageError("mkdir", dir, err)
		}
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, pkgerrors.NewStorageError("open", dsn, err)
	}

	// SQLite does not handle concurrent writers well
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, pkgerrors.NewStorageError("pragma", "journal_mode", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, pkgerrors.NewStorageError("pragma", "foreign_keys", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, pkgerrors.NewStorageError("schema", dsn, err)
	}

	return &Store{conn: conn, path: cfg.Path}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying sql.DB for direct access
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// Transaction executes fn within a transaction
func (s *Store) Transaction(fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
