package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"healthsync/application/ports"
	"healthsync/domain/chat"
	"healthsync/domain/health"
	domainsync "healthsync/domain/sync"
	pkgerrors "healthsync/pkg/errors"
	"healthsync/pkg/utils"
)

const (
	// snapshotRetention is how many backup snapshots survive pruning
	snapshotRetention = 3

	maxStoredMessages = 1000
	maxStoredPoints   = 10000
)

// Migration is one registered storage upgrade. Versions are semver strings
// without the leading v; each migration runs at most once per device.
type Migration struct {
	Version     string
	Description string
	Apply       func(ctx context.Context, kv ports.KVStore) error
}

// Maintenance owns storage migrations, integrity validation and retention
// cleanup. Migrations run inside a snapshot/restore envelope so a failed
// upgrade never leaves the store half-migrated.
type Maintenance struct {
	kv         ports.KVStore
	batches    ports.BatchStore
	queue      ports.QueueStore
	snapshots  ports.SnapshotStore
	logger     *zap.Logger
	migrations []Migration

	cleanupInterval time.Duration
	retentionDays   int
}

// NewMaintenance creates the maintenance service
func NewMaintenance(
	kv ports.KVStore,
	batches ports.BatchStore,
	queue ports.QueueStore,
	snapshots ports.SnapshotStore,
	cleanupInterval time.Duration,
	retentionDays int,
	logger *zap.Logger,
) *Maintenance {
	return &Maintenance{
		kv:              kv,
		batches:         batches,
		queue:           queue,
		snapshots:       snapshots,
		logger:          logger,
		cleanupInterval: cleanupInterval,
		retentionDays:   retentionDays,
	}
}

// Register adds a migration. Registration order does not matter; execution
// order is semver order.
func (m *Maintenance) Register(migration Migration) error {
	if !semver.IsValid("v" + migration.Version) {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("invalid migration version %q", migration.Version),
		)
	}
	m.migrations = append(m.migrations, migration)
	return nil
}

// Migrate runs every registered migration newer than the stored version that
// has not already completed. The whole run is wrapped in a snapshot: on any
// failure the store is restored and the error propagated.
func (m *Maintenance) Migrate(ctx context.Context) error {
	pending := m.pending(ctx)
	if len(pending) == 0 {
		return nil
	}

	snap, err := m.backup(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "pre-migration backup")
	}

	completed := m.completed(ctx)
	for _, migration := range pending {
		m.logger.Info("running storage migration",
			zap.String("version", migration.Version),
			zap.String("description", migration.Description),
		)
		if err := migration.Apply(ctx, m.kv); err != nil {
			m.restore(ctx, snap)
			return pkgerrors.NewMigrationError(migration.Version, err)
		}
		if issues := m.Validate(ctx); len(issues) > 0 {
			m.restore(ctx, snap)
			return pkgerrors.NewMigrationError(migration.Version,
				fmt.Errorf("post-migration validation failed: %v", issues))
		}

		completed[migration.Version] = time.Now().UTC().Format(time.RFC3339)
		if err := m.kv.Set(ctx, ports.KeyMigrationStatus, completed); err != nil {
			m.restore(ctx, snap)
			return pkgerrors.NewMigrationError(migration.Version, err)
		}
		if err := m.kv.Set(ctx, ports.KeyStorageVersion, migration.Version); err != nil {
			m.restore(ctx, snap)
			return pkgerrors.NewMigrationError(migration.Version, err)
		}
	}

	m.pruneSnapshots(ctx)
	return nil
}

// pending returns migrations newer than the stored version and not yet
// recorded as completed, in semver order.
func (m *Maintenance) pending(ctx context.Context) []Migration {
	var current string
	m.kv.Get(ctx, ports.KeyStorageVersion, &current)
	completed := m.completed(ctx)

	var out []Migration
	for _, migration := range m.migrations {
		if _, done := completed[migration.Version]; done {
			continue
		}
		if current != "" && semver.Compare("v"+migration.Version, "v"+current) <= 0 {
			continue
		}
		out = append(out, migration)
	}
	sort.Slice(out, func(i, j int) bool {
		return semver.Compare("v"+out[i].Version, "v"+out[j].Version) < 0
	})
	return out
}

func (m *Maintenance) completed(ctx context.Context) map[string]string {
	completed := make(map[string]string)
	m.kv.Get(ctx, ports.KeyMigrationStatus, &completed)
	return completed
}

// backup snapshots both key-value partitions and the sync queue
func (m *Maintenance) backup(ctx context.Context) (ports.Snapshot, error) {
	keys, err := m.kv.Keys(ctx)
	if err != nil {
		return ports.Snapshot{}, err
	}
	sensitiveKeys, err := m.kv.KeysSensitive(ctx)
	if err != nil {
		return ports.Snapshot{}, err
	}
	items, err := m.queue.All(ctx)
	if err != nil {
		return ports.Snapshot{}, err
	}

	now := time.Now().UTC()
	snap := ports.Snapshot{
		Name:      fmt.Sprintf("backup-%s", now.Format("20060102T150405")),
		CreatedAt: now,
		Data:      make(map[string][]byte, len(keys)),
		Sensitive: make(map[string][]byte, len(sensitiveKeys)),
		Queue:     items,
	}
	for _, key := range keys {
		var raw json.RawMessage
		if !m.kv.Get(ctx, key, &raw) {
			continue
		}
		snap.Data[key] = raw
	}
	for _, key := range sensitiveKeys {
		var raw json.RawMessage
		if !m.kv.GetSensitive(ctx, key, &raw) {
			continue
		}
		snap.Sensitive[key] = raw
	}
	if err := m.snapshots.Save(ctx, snap); err != nil {
		return ports.Snapshot{}, err
	}
	return snap, nil
}

// restore puts every snapshotted key back, in both partitions, and deletes
// keys the failed migration introduced. The queue is rewritten to its
// snapshotted contents.
func (m *Maintenance) restore(ctx context.Context, snap ports.Snapshot) {
	m.logger.Warn("restoring storage from snapshot", zap.String("snapshot", snap.Name))

	keys, err := m.kv.Keys(ctx)
	if err == nil {
		for _, key := range keys {
			if _, had := snap.Data[key]; !had {
				if err := m.kv.Delete(ctx, key); err != nil {
					m.logger.Error("restore: failed to delete key",
						zap.String("key", key), zap.Error(err))
				}
			}
		}
	}
	for key, raw := range snap.Data {
		if err := m.kv.Set(ctx, key, json.RawMessage(raw)); err != nil {
			m.logger.Error("restore: failed to rewrite key",
				zap.String("key", key), zap.Error(err))
		}
	}

	sensitiveKeys, err := m.kv.KeysSensitive(ctx)
	if err == nil {
		for _, key := range sensitiveKeys {
			if _, had := snap.Sensitive[key]; !had {
				if err := m.kv.DeleteSensitive(ctx, key); err != nil {
					m.logger.Error("restore: failed to delete sensitive key",
						zap.String("key", key), zap.Error(err))
				}
			}
		}
	}
	for key, raw := range snap.Sensitive {
		if err := m.kv.SetSensitive(ctx, key, json.RawMessage(raw)); err != nil {
			m.logger.Error("restore: failed to rewrite sensitive key",
				zap.String("key", key), zap.Error(err))
		}
	}

	items, err := m.queue.All(ctx)
	if err == nil {
		for _, item := range items {
			if err := m.queue.Remove(ctx, item.ID); err != nil {
				m.logger.Error("restore: failed to remove queue item",
					zap.String("id", item.ID), zap.Error(err))
			}
		}
	}
	for _, item := range snap.Queue {
		if err := m.queue.Append(ctx, item); err != nil {
			m.logger.Error("restore: failed to restore queue item",
				zap.String("id", item.ID), zap.Error(err))
		}
	}
}

// pruneSnapshots keeps only the newest snapshots
func (m *Maintenance) pruneSnapshots(ctx context.Context) {
	names, err := m.snapshots.List(ctx)
	if err != nil {
		m.logger.Warn("failed to list snapshots", zap.Error(err))
		return
	}
	for _, name := range names[min(len(names), snapshotRetention):] {
		if err := m.snapshots.Delete(ctx, name); err != nil {
			m.logger.Warn("failed to prune snapshot",
				zap.String("snapshot", name), zap.Error(err))
		}
	}
}

// Validate checks structural integrity of the stored lists and returns a
// human-readable description per problem. An empty result means healthy.
func (m *Maintenance) Validate(ctx context.Context) []string {
	var issues []string

	var messages []chat.Message
	if m.kv.Get(ctx, ports.KeyChatMessages, &messages) {
		for i, msg := range messages {
			if err := utils.ValidateStruct(msg); err != nil {
				issues = append(issues,
					fmt.Sprintf("chat message %d (%s): %v", i, msg.ID, err))
			}
		}
	}

	var points []health.MeasurementPoint
	if m.kv.Get(ctx, ports.KeyHealthDataPoints, &points) {
		for i, point := range points {
			if err := utils.ValidateStruct(point); err != nil {
				issues = append(issues,
					fmt.Sprintf("health point %d (%s): %v", i, point.ID, err))
			}
		}
	}

	items, err := m.queue.All(ctx)
	if err == nil {
		for i, item := range items {
			if item.ID == "" || item.Kind() == "" || item.Action == "" || item.Priority == "" {
				issues = append(issues, fmt.Sprintf("queue item %d is incomplete", i))
			}
		}
	}

	return issues
}

// CleanupReport summarizes one retention pass
type CleanupReport struct {
	Skipped          bool `json:"skipped"`
	MessagesRemoved  int  `json:"messagesRemoved"`
	PointsRemoved    int  `json:"pointsRemoved"`
	SummariesRemoved int  `json:"summariesRemoved"`
	BatchesRemoved   int  `json:"batchesRemoved"`
	ItemsPruned      int  `json:"itemsPruned"`
}

// Cleanup enforces retention. Rows older than the retention window are
// purged first, then the count caps apply to what remains. Scheduled runs
// are gated by the cleanup interval; pass force to bypass the gate.
func (m *Maintenance) Cleanup(ctx context.Context, force bool) (CleanupReport, error) {
	now := time.Now().UTC()
	if !force {
		var last time.Time
		if m.kv.Get(ctx, ports.KeyLastCleanup, &last) && now.Sub(last) < m.cleanupInterval {
			return CleanupReport{Skipped: true}, nil
		}
	}

	var report CleanupReport
	cutoff := now.AddDate(0, 0, -m.retentionDays)

	// Messages: retention window by creation time, then a FIFO cap
	var messages []chat.Message
	if m.kv.Get(ctx, ports.KeyChatMessages, &messages) {
		kept := messages[:0]
		for _, msg := range messages {
			if msg.CreatedAt.Before(cutoff) {
				report.MessagesRemoved++
				continue
			}
			kept = append(kept, msg)
		}
		if len(kept) > maxStoredMessages {
			over := len(kept) - maxStoredMessages
			report.MessagesRemoved += over
			kept = kept[over:]
		}
		if report.MessagesRemoved > 0 {
			if err := m.kv.Set(ctx, ports.KeyChatMessages, kept); err != nil {
				return report, err
			}
		}
	}

	// Points: retention window by measurement time, then cap dropping the
	// oldest first
	var points []health.MeasurementPoint
	if m.kv.Get(ctx, ports.KeyHealthDataPoints, &points) {
		kept := points[:0]
		for _, point := range points {
			if point.Timestamp.Before(cutoff) {
				report.PointsRemoved++
				continue
			}
			kept = append(kept, point)
		}
		if len(kept) > maxStoredPoints {
			sort.SliceStable(kept, func(i, j int) bool {
				return kept[i].Timestamp.Before(kept[j].Timestamp)
			})
			over := len(kept) - maxStoredPoints
			report.PointsRemoved += over
			kept = kept[over:]
		}
		if report.PointsRemoved > 0 {
			if err := m.kv.Set(ctx, ports.KeyHealthDataPoints, kept); err != nil {
				return report, err
			}
		}
	}

	// Daily summaries age out by their calendar date. Rows whose date does
	// not parse are kept rather than silently destroyed.
	var summaries []health.DailySummary
	if m.kv.Get(ctx, ports.KeyDailySummaries, &summaries) {
		kept := summaries[:0]
		for _, summary := range summaries {
			date, err := time.Parse("2006-01-02", summary.Date)
			if err == nil && date.Before(cutoff) {
				report.SummariesRemoved++
				continue
			}
			kept = append(kept, summary)
		}
		if report.SummariesRemoved > 0 {
			if err := m.kv.Set(ctx, ports.KeyDailySummaries, kept); err != nil {
				return report, err
			}
		}
	}

	removed, err := m.batches.DeleteSyncedOlderThan(ctx, cutoff)
	if err != nil {
		return report, pkgerrors.Wrap(err, "purge synced batches")
	}
	report.BatchesRemoved = removed

	pruned, err := m.queue.PruneExhausted(ctx, cutoff, domainsync.MaxRetries)
	if err != nil {
		return report, pkgerrors.Wrap(err, "prune exhausted queue items")
	}
	report.ItemsPruned = pruned

	if err := m.kv.Set(ctx, ports.KeyLastCleanup, now); err != nil {
		return report, err
	}

	m.logger.Info("cleanup complete",
		zap.Int("messagesRemoved", report.MessagesRemoved),
		zap.Int("pointsRemoved", report.PointsRemoved),
		zap.Int("summariesRemoved", report.SummariesRemoved),
		zap.Int("batchesRemoved", report.BatchesRemoved),
		zap.Int("itemsPruned", report.ItemsPruned),
	)
	return report, nil
}
