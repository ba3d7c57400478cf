package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/domain/health"
	domainsync "healthsync/domain/sync"
	pkgerrors "healthsync/pkg/errors"
)

// Buffer is the offline point buffer: points captured while offline are held
// in batches separate from the generic store, retrievable by date or metric,
// and staged into the sync queue for later remote push.
type Buffer struct {
	batches ports.BatchStore
	queue   ports.QueueStore
	logger  *zap.Logger
}

// NewBuffer creates the offline point buffer
func NewBuffer(batches ports.BatchStore, queue ports.QueueStore, logger *zap.Logger) *Buffer {
	return &Buffer{
		batches: batches,
		queue:   queue,
		logger:  logger,
	}
}

// Store wraps points in a new unsynced batch, appends it, and enqueues a
// companion queue item so the data is both retrievable offline and eligible
// for later remote push. Returns the generated batch id.
func (b *Buffer) Store(ctx context.Context, points []health.MeasurementPoint, source string) (string, error) {
	batch, err := health.NewOfflineBatch(points, source)
	if err != nil {
		return "", err
	}

	if err := b.batches.Append(ctx, batch); err != nil {
		return "", pkgerrors.Wrap(err, "store offline batch")
	}

	item, err := domainsync.NewQueueItem(
		domainsync.HealthData{BatchID: batch.ID, Points: batch.Points},
		domainsync.ActionCreate,
		domainsync.PriorityNormal,
	)
	if err != nil {
		return "", err
	}
	if err := b.queue.Append(ctx, item); err != nil {
		return "", pkgerrors.Wrap(err, "enqueue offline batch")
	}

	b.logger.Debug("offline batch stored",
		zap.String("batchId", batch.ID),
		zap.String("source", source),
		zap.Int("points", len(points)),
	)
	return batch.ID, nil
}

// MarkSynced flips the batch's one-way synced flag. The batch itself is
// retained for the filtered-read operations.
func (b *Buffer) MarkSynced(ctx context.Context, batchID string) error {
	return b.batches.MarkSynced(ctx, batchID)
}

// UnsyncedBatches returns all batches not yet pushed
func (b *Buffer) UnsyncedBatches(ctx context.Context) ([]health.OfflineBatch, error) {
	all, err := b.batches.All(ctx)
	if err != nil {
		return nil, err
	}
	var unsynced []health.OfflineBatch
	for _, batch := range all {
		if !batch.Synced {
			unsynced = append(unsynced, batch)
		}
	}
	return unsynced, nil
}

// PointsInRange flattens all stored batches and filters by timestamp.
// Corrupt stored batches are skipped by the store, logged, never thrown.
func (b *Buffer) PointsInRange(ctx context.Context, start, end time.Time) []health.MeasurementPoint {
	return b.filterPoints(ctx, func(p health.MeasurementPoint) bool {
		return p.InRange(start, end)
	})
}

// PointsForMetric flattens all stored batches and filters by metric tag
func (b *Buffer) PointsForMetric(ctx context.Context, metric health.Metric) []health.MeasurementPoint {
	return b.filterPoints(ctx, func(p health.MeasurementPoint) bool {
		return p.Metric == metric
	})
}

func (b *Buffer) filterPoints(ctx context.Context, keep func(health.MeasurementPoint) bool) []health.MeasurementPoint {
	all, err := b.batches.All(ctx)
	if err != nil {
		// Reads are fail-soft: an unreadable buffer yields an empty result
		b.logger.Warn("offline buffer read failed", zap.Error(err))
		return nil
	}

	var points []health.MeasurementPoint
	for _, batch := range all {
		for _, p := range batch.Points {
			if keep(p) {
				points = append(points, p)
			}
		}
	}
	return points
}

// PurgeOlderThan deletes synced batches captured before the cutoff. Unsynced
// batches are never purged regardless of age. It also prunes queue entries
// older than the cutoff that have exhausted their retries.
func (b *Buffer) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	removed, err := b.batches.DeleteSyncedOlderThan(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "purge offline batches")
	}

	pruned, err := b.queue.PruneExhausted(ctx, cutoff, domainsync.MaxRetries)
	if err != nil {
		return removed, pkgerrors.Wrap(err, "prune exhausted queue entries")
	}

	if removed > 0 || pruned > 0 {
		b.logger.Info("offline buffer purged",
			zap.Int("batchesRemoved", removed),
			zap.Int("queueEntriesPruned", pruned),
			zap.Time("cutoff", cutoff),
		)
	}
	return removed, nil
}

// Footprint reports the approximate byte size and item counts of the buffer
func (b *Buffer) Footprint(ctx context.Context) (ports.Footprint, error) {
	return b.batches.Footprint(ctx)
}
