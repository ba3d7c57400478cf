package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/domain/health"
	pkgerrors "healthsync/pkg/errors"
)

// BatchStore implements ports.BatchStore over the offline_batches table
type BatchStore struct {
	store  *Store
	logger *zap.Logger
}

// NewBatchStore creates the offline buffer partition store
func NewBatchStore(store *Store, logger *zap.Logger) *BatchStore {
	return &BatchStore{store: store, logger: logger}
}

// Append persists a new batch
func (s *BatchStore) Append(ctx context.Context, batch health.OfflineBatch) error {
	raw, err := json.Marshal(batch)
	if err != nil {
		return pkgerrors.NewStorageError("append", batch.ID, err)
	}
	if _, err := s.store.conn.ExecContext(ctx,
		`INSERT INTO offline_batches (id, captured_at, synced, data) VALUES (?, ?, ?, ?)`,
		batch.ID, batch.CapturedAt.UTC().Format(time.RFC3339Nano), boolToInt(batch.Synced), raw,
	); err != nil {
		return pkgerrors.NewStorageError("append", batch.ID, err)
	}
	return nil
}

// All returns decodable batches in capture order. Corrupt rows are skipped
// and logged, never propagated.
func (s *BatchStore) All(ctx context.Context) ([]health.OfflineBatch, error) {
	rows, err := s.store.conn.QueryContext(ctx,
		`SELECT id, data FROM offline_batches ORDER BY seq`,
	)
	if err != nil {
		return nil, pkgerrors.NewStorageError("all", "offline_batches", err)
	}
	defer rows.Close()

	var batches []health.OfflineBatch
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, pkgerrors.NewStorageError("all", "offline_batches", err)
		}
		var batch health.OfflineBatch
		if err := json.Unmarshal(raw, &batch); err != nil {
			s.logger.Warn("skipping corrupt batch row",
				zap.String("id", id),
				zap.Error(err),
			)
			continue
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// MarkSynced flips the synced flag on both the column and the stored envelope
func (s *BatchStore) MarkSynced(ctx context.Context, id string) error {
	var raw []byte
	if err := s.store.conn.QueryRowContext(ctx,
		`SELECT data FROM offline_batches WHERE id = ?`, id,
	).Scan(&raw); err != nil {
		return pkgerrors.NewNotFoundError("offline batch " + id)
	}

	var batch health.OfflineBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return pkgerrors.NewStorageError("mark_synced", id, err)
	}
	batch.MarkSynced()

	updated, err := json.Marshal(batch)
	if err != nil {
		return pkgerrors.NewStorageError("mark_synced", id, err)
	}
	if _, err := s.store.conn.ExecContext(ctx,
		`UPDATE offline_batches SET synced = 1, data = ? WHERE id = ?`,
		updated, id,
	); err != nil {
		return pkgerrors.NewStorageError("mark_synced", id, err)
	}
	return nil
}

// DeleteSyncedOlderThan removes synced batches captured before the cutoff.
// Unsynced batches stay regardless of age.
func (s *BatchStore) DeleteSyncedOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.store.conn.ExecContext(ctx,
		`DELETE FROM offline_batches WHERE synced = 1 AND captured_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, pkgerrors.NewStorageError("purge", "offline_batches", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pkgerrors.NewStorageError("purge", "offline_batches", err)
	}
	return int(n), nil
}

// Footprint reports the stored byte size and item counts of the partition
func (s *BatchStore) Footprint(ctx context.Context) (ports.Footprint, error) {
	var fp ports.Footprint
	if err := s.store.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(LENGTH(data)), 0), COUNT(*) FROM offline_batches`,
	).Scan(&fp.Bytes, &fp.Batches); err != nil {
		return fp, pkgerrors.NewStorageError("footprint", "offline_batches", err)
	}

	batches, err := s.All(ctx)
	if err != nil {
		return fp, err
	}
	for _, batch := range batches {
		fp.Points += len(batch.Points)
	}
	return fp, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
