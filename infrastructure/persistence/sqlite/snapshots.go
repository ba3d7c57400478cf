package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"healthsync/application/ports"
	domainsync "healthsync/domain/sync"
	pkgerrors "healthsync/pkg/errors"
)

// SnapshotStore implements ports.SnapshotStore over the snapshots table
type SnapshotStore struct {
	store *Store
}

// NewSnapshotStore creates the backup snapshot store
func NewSnapshotStore(store *Store) *SnapshotStore {
	return &SnapshotStore{store: store}
}

// snapshotBody is the stored blob: everything except name and timestamp,
// which live in their own columns.
type snapshotBody struct {
	Data      map[string][]byte      `json:"data"`
	Sensitive map[string][]byte      `json:"sensitive,omitempty"`
	Queue     []domainsync.QueueItem `json:"queue,omitempty"`
}

// Save persists a snapshot, replacing any previous one with the same name
func (s *SnapshotStore) Save(ctx context.Context, snap ports.Snapshot) error {
	raw, err := json.Marshal(snapshotBody{
		Data:      snap.Data,
		Sensitive: snap.Sensitive,
		Queue:     snap.Queue,
	})
	if err != nil {
		return pkgerrors.NewStorageError("save", snap.Name, err)
	}
	if _, err := s.store.conn.ExecContext(ctx,
		`INSERT INTO snapshots (name, created_at, data) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET created_at = excluded.created_at, data = excluded.data`,
		snap.Name, snap.CreatedAt.UTC().Format(time.RFC3339Nano), raw,
	); err != nil {
		return pkgerrors.NewStorageError("save", snap.Name, err)
	}
	return nil
}

// Load reads a snapshot by name
func (s *SnapshotStore) Load(ctx context.Context, name string) (ports.Snapshot, error) {
	var createdAt string
	var raw []byte
	err := s.store.conn.QueryRowContext(ctx,
		`SELECT created_at, data FROM snapshots WHERE name = ?`, name,
	).Scan(&createdAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Snapshot{}, pkgerrors.NewNotFoundError("snapshot " + name)
	}
	if err != nil {
		return ports.Snapshot{}, pkgerrors.NewStorageError("load", name, err)
	}

	snap := ports.Snapshot{Name: name}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		snap.CreatedAt = ts
	}
	var body snapshotBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return ports.Snapshot{}, pkgerrors.NewStorageError("load", name, err)
	}
	snap.Data = body.Data
	snap.Sensitive = body.Sensitive
	snap.Queue = body.Queue
	return snap, nil
}

// List returns snapshot names, newest first
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.store.conn.QueryContext(ctx,
		`SELECT name FROM snapshots ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, pkgerrors.NewStorageError("list", "snapshots", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, pkgerrors.NewStorageError("list", "snapshots", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a snapshot by name
func (s *SnapshotStore) Delete(ctx context.Context, name string) error {
	if _, err := s.store.conn.ExecContext(ctx,
		`DELETE FROM snapshots WHERE name = ?`, name,
	); err != nil {
		return pkgerrors.NewStorageError("delete", name, err)
	}
	return nil
}
