package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	pkgerrors "healthsync/pkg/errors"
)

// KVStore implements ports.KVStore over the kv_general and kv_sensitive
// tables. Values are stored as JSON blobs. Reads are fail-soft: a missing
// or undecodable row yields found == false and a log line. Writes return a
// typed storage error carrying the operation and key.
type KVStore struct {
	store  *Store
	logger *zap.Logger
}

// NewKVStore creates the key-value partition store
func NewKVStore(store *Store, logger *zap.Logger) *KVStore {
	return &KVStore{store: store, logger: logger}
}

// Get reads a key from the general partition
func (s *KVStore) Get(ctx context.Context, key string, dest any) bool {
	return s.get(ctx, "kv_general", key, dest)
}

// Set writes a key in the general partition
func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	return s.set(ctx, "kv_general", key, value)
}

// Delete removes a key from the general partition
func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.delete(ctx, "kv_general", key)
}

// Keys lists every key in the general partition
func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	return s.keys(ctx, "kv_general")
}

// GetSensitive reads a key from the sensitive partition
func (s *KVStore) GetSensitive(ctx context.Context, key string, dest any) bool {
	return s.get(ctx, "kv_sensitive", key, dest)
}

// SetSensitive writes a key in the sensitive partition
func (s *KVStore) SetSensitive(ctx context.Context, key string, value any) error {
	return s.set(ctx, "kv_sensitive", key, value)
}

// DeleteSensitive removes a key from the sensitive partition
func (s *KVStore) DeleteSensitive(ctx context.Context, key string) error {
	return s.delete(ctx, "kv_sensitive", key)
}

// KeysSensitive lists every key in the sensitive partition
func (s *KVStore) KeysSensitive(ctx context.Context) ([]string, error) {
	return s.keys(ctx, "kv_sensitive")
}

func (s *KVStore) keys(ctx context.Context, table string) ([]string, error) {
	rows, err := s.store.conn.QueryContext(ctx, `SELECT key FROM `+table+` ORDER BY key`)
	if err != nil {
		return nil, pkgerrors.NewStorageError("keys", table, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, pkgerrors.NewStorageError("keys", table, err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *KVStore) get(ctx context.Context, table, key string, dest any) bool {
	var raw []byte
	err := s.store.conn.QueryRowContext(ctx,
		`SELECT value FROM `+table+` WHERE key = ?`, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		s.logger.Warn("kv read failed",
			zap.String("table", table),
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("kv value undecodable",
			zap.String("table", table),
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *KVStore) set(ctx context.Context, table, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.NewStorageError("set", key, err)
	}
	_, err = s.store.conn.ExecContext(ctx,
		`INSERT INTO `+table+` (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, raw, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return pkgerrors.NewStorageError("set", key, err)
	}
	return nil
}

func (s *KVStore) delete(ctx context.Context, table, key string) error {
	if _, err := s.store.conn.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE key = ?`, key,
	); err != nil {
		return pkgerrors.NewStorageError("delete", key, err)
	}
	return nil
}
