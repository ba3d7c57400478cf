// Package memory provides in-memory implementations of the persistence
// ports, used in tests and as a fallback when no database path is set.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"healthsync/application/ports"
	"healthsync/domain/health"
	domainsync "healthsync/domain/sync"
	pkgerrors "healthsync/pkg/errors"
)

// KVStore is a map-backed ports.KVStore. Values round-trip through JSON so
// type behavior matches the SQLite store.
type KVStore struct {
	mu        sync.RWMutex
	general   map[string][]byte
	sensitive map[string][]byte
}

// NewKVStore creates an empty in-memory key-value store
func NewKVStore() *KVStore {
	return &KVStore{
		general:   make(map[string][]byte),
		sensitive: make(map[string][]byte),
	}
}

func (s *KVStore) Get(ctx context.Context, key string, dest any) bool {
	s.mu.RLock()
	raw, ok := s.general[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.NewStorageError("set", key, err)
	}
	s.mu.Lock()
	s.general[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.general, key)
	s.mu.Unlock()
	return nil
}

func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.general))
	for key := range s.general {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KVStore) GetSensitive(ctx context.Context, key string, dest any) bool {
	s.mu.RLock()
	raw, ok := s.sensitive[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (s *KVStore) SetSensitive(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.NewStorageError("set_sensitive", key, err)
	}
	s.mu.Lock()
	s.sensitive[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *KVStore) DeleteSensitive(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.sensitive, key)
	s.mu.Unlock()
	return nil
}

func (s *KVStore) KeysSensitive(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.sensitive))
	for key := range s.sensitive {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// QueueStore is a slice-backed ports.QueueStore preserving enqueue order
type QueueStore struct {
	mu    sync.Mutex
	items []domainsync.QueueItem
}

// NewQueueStore creates an empty in-memory queue store
func NewQueueStore() *QueueStore {
	return &QueueStore{}
}

func (s *QueueStore) Append(ctx context.Context, item domainsync.QueueItem) error {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
	return nil
}

func (s *QueueStore) All(ctx context.Context) ([]domainsync.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domainsync.QueueItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *QueueStore) Update(ctx context.Context, item domainsync.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == item.ID {
			s.items[i] = item
			return nil
		}
	}
	return pkgerrors.NewNotFoundError("queue item " + item.ID)
}

func (s *QueueStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *QueueStore) PruneExhausted(ctx context.Context, cutoff time.Time, ceiling int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if item.EnqueuedAt.Before(cutoff) && item.RetryCount >= ceiling {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return removed, nil
}

func (s *QueueStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

// BatchStore is a slice-backed ports.BatchStore preserving capture order
type BatchStore struct {
	mu      sync.Mutex
	batches []health.OfflineBatch
}

// NewBatchStore creates an empty in-memory batch store
func NewBatchStore() *BatchStore {
	return &BatchStore{}
}

func (s *BatchStore) Append(ctx context.Context, batch health.OfflineBatch) error {
	s.mu.Lock()
	s.batches = append(s.batches, batch)
	s.mu.Unlock()
	return nil
}

func (s *BatchStore) All(ctx context.Context) ([]health.OfflineBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]health.OfflineBatch, len(s.batches))
	copy(out, s.batches)
	return out, nil
}

func (s *BatchStore) MarkSynced(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.batches {
		if s.batches[i].ID == id {
			s.batches[i].MarkSynced()
			return nil
		}
	}
	return pkgerrors.NewNotFoundError("offline batch " + id)
}

func (s *BatchStore) DeleteSyncedOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.batches[:0]
	removed := 0
	for _, batch := range s.batches {
		if batch.Synced && batch.OlderThan(cutoff) {
			removed++
			continue
		}
		kept = append(kept, batch)
	}
	s.batches = kept
	return removed, nil
}

func (s *BatchStore) Footprint(ctx context.Context) (ports.Footprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fp ports.Footprint
	for _, batch := range s.batches {
		raw, err := json.Marshal(batch)
		if err != nil {
			continue
		}
		fp.Bytes += int64(len(raw))
		fp.Batches++
		fp.Points += len(batch.Points)
	}
	return fp, nil
}

// SnapshotStore is a map-backed ports.SnapshotStore
type SnapshotStore struct {
	mu    sync.Mutex
	snaps map[string]ports.Snapshot
}

// NewSnapshotStore creates an empty in-memory snapshot store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snaps: make(map[string]ports.Snapshot)}
}

func (s *SnapshotStore) Save(ctx context.Context, snap ports.Snapshot) error {
	s.mu.Lock()
	s.snaps[snap.Name] = snap
	s.mu.Unlock()
	return nil
}

func (s *SnapshotStore) Load(ctx context.Context, name string) (ports.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[name]
	if !ok {
		return ports.Snapshot{}, pkgerrors.NewNotFoundError("snapshot " + name)
	}
	return snap, nil
}

func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.snaps))
	for name := range s.snaps {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return s.snaps[names[i]].CreatedAt.After(s.snaps[names[j]].CreatedAt)
	})
	return names, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	delete(s.snaps, name)
	s.mu.Unlock()
	return nil
}
