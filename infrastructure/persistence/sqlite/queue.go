package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	domainsync "healthsync/domain/sync"
	pkgerrors "healthsync/pkg/errors"
)

// QueueStore implements ports.QueueStore over the sync_queue table. Rows
// carry the full JSON envelope plus denormalized columns for ordering and
// pruning.
type QueueStore struct {
	store  *Store
	logger *zap.Logger
}

// NewQueueStore creates the sync queue partition store
func NewQueueStore(store *Store, logger *zap.Logger) *QueueStore {
	return &QueueStore{store: store, logger: logger}
}

// Append persists a new queue item
func (s *QueueStore) Append(ctx context.Context, item domainsync.QueueItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return pkgerrors.NewStorageError("append", item.ID, err)
	}
	if _, err := s.store.conn.ExecContext(ctx,
		`INSERT INTO sync_queue (id, enqueued_at, retry_count, data) VALUES (?, ?, ?, ?)`,
		item.ID, item.EnqueuedAt.UTC().Format(time.RFC3339Nano), item.RetryCount, raw,
	); err != nil {
		return pkgerrors.NewStorageError("append", item.ID, err)
	}
	return nil
}

// All returns items in enqueue order. Undecodable rows are skipped and
// logged so one corrupt entry never blocks the rest of the queue.
func (s *QueueStore) All(ctx context.Context) ([]domainsync.QueueItem, error) {
	rows, err := s.store.conn.QueryContext(ctx,
		`SELECT id, data FROM sync_queue ORDER BY seq`,
	)
	if err != nil {
		return nil, pkgerrors.NewStorageError("all", "sync_queue", err)
	}
	defer rows.Close()

	var items []domainsync.QueueItem
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, pkgerrors.NewStorageError("all", "sync_queue", err)
		}
		var item domainsync.QueueItem
		if err := json.Unmarshal(raw, &item); err != nil {
			s.logger.Warn("skipping undecodable queue row",
				zap.String("id", id),
				zap.Error(err),
			)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update rewrites an existing item, keeping the denormalized retry column
// in step with the envelope.
func (s *QueueStore) Update(ctx context.Context, item domainsync.QueueItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return pkgerrors.NewStorageError("update", item.ID, err)
	}
	res, err := s.store.conn.ExecContext(ctx,
		`UPDATE sync_queue SET data = ?, retry_count = ? WHERE id = ?`,
		raw, item.RetryCount, item.ID,
	)
	if err != nil {
		return pkgerrors.NewStorageError("update", item.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return pkgerrors.NewNotFoundError("queue item " + item.ID)
	}
	return nil
}

// Remove deletes an item by id
func (s *QueueStore) Remove(ctx context.Context, id string) error {
	if _, err := s.store.conn.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE id = ?`, id,
	); err != nil {
		return pkgerrors.NewStorageError("remove", id, err)
	}
	return nil
}

// PruneExhausted deletes items enqueued before the cutoff whose retry count
// has reached the ceiling.
func (s *QueueStore) PruneExhausted(ctx context.Context, cutoff time.Time, ceiling int) (int, error) {
	res, err := s.store.conn.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE enqueued_at < ? AND retry_count >= ?`,
		cutoff.UTC().Format(time.RFC3339Nano), ceiling,
	)
	if err != nil {
		return 0, pkgerrors.NewStorageError("prune", "sync_queue", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pkgerrors.NewStorageError("prune", "sync_queue", err)
	}
	return int(n), nil
}

// Count returns the number of pending items
func (s *QueueStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue`,
	).Scan(&n); err != nil {
		return 0, pkgerrors.NewStorageError("count", "sync_queue", err)
	}
	return n, nil
}
