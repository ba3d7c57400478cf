package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthsync/domain/health"
	domainsync "healthsync/domain/sync"
	"healthsync/infrastructure/persistence/memory"
)

func newTestBuffer(t *testing.T) (*Buffer, *memory.BatchStore, *memory.QueueStore) {
	t.Helper()
	batches := memory.NewBatchStore()
	queue := memory.NewQueueStore()
	return NewBuffer(batches, queue, zap.NewNop()), batches, queue
}

func TestBufferStoreStagesQueueItem(t *testing.T) {
	ctx := context.Background()
	buffer, batches, queue := newTestBuffer(t)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	batchID, err := buffer.Store(ctx, []health.MeasurementPoint{
		point(health.MetricSteps, 500, ts, "watch", 0.9),
	}, "watch")
	require.NoError(t, err)
	require.NotEmpty(t, batchID)

	all, err := batches.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Synced)

	items, err := queue.All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domainsync.KindHealthData, items[0].Kind())

	payload, ok := items[0].Payload.(domainsync.HealthData)
	require.True(t, ok)
	assert.Equal(t, batchID, payload.BatchID)
}

func TestBufferRejectsEmptyPointSet(t *testing.T) {
	buffer, _, _ := newTestBuffer(t)
	_, err := buffer.Store(context.Background(), nil, "watch")
	assert.Error(t, err)
}

func TestBufferFilteredReads(t *testing.T) {
	ctx := context.Background()
	buffer, _, _ := newTestBuffer(t)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	_, err := buffer.Store(ctx, []health.MeasurementPoint{
		point(health.MetricSteps, 500, ts, "watch", 0.9),
		point(health.MetricHeartRate, 72, ts.Add(time.Hour), "watch", 0.9),
	}, "watch")
	require.NoError(t, err)

	byMetric := buffer.PointsForMetric(ctx, health.MetricSteps)
	require.Len(t, byMetric, 1)
	assert.Equal(t, health.MetricSteps, byMetric[0].Metric)

	inRange := buffer.PointsInRange(ctx, ts.Add(30*time.Minute), ts.Add(2*time.Hour))
	require.Len(t, inRange, 1)
	assert.Equal(t, health.MetricHeartRate, inRange[0].Metric)
}

func TestPurgeNeverTouchesUnsyncedBatches(t *testing.T) {
	ctx := context.Background()
	buffer, batches, _ := newTestBuffer(t)

	old := time.Now().UTC().AddDate(0, 0, -60)
	synced, err := health.NewOfflineBatch([]health.MeasurementPoint{
		point(health.MetricSteps, 100, old, "watch", 0.9),
	}, "watch")
	require.NoError(t, err)
	synced.CapturedAt = old
	synced.MarkSynced()
	require.NoError(t, batches.Append(ctx, synced))

	unsynced, err := health.NewOfflineBatch([]health.MeasurementPoint{
		point(health.MetricSteps, 200, old, "phone", 0.9),
	}, "phone")
	require.NoError(t, err)
	unsynced.CapturedAt = old
	require.NoError(t, batches.Append(ctx, unsynced))

	removed, err := buffer.PurgeOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := batches.All(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.False(t, remaining[0].Synced, "unsynced data must survive any purge")
}

func TestBufferFootprint(t *testing.T) {
	ctx := context.Background()
	buffer, _, _ := newTestBuffer(t)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	_, err := buffer.Store(ctx, []health.MeasurementPoint{
		point(health.MetricSteps, 500, ts, "watch", 0.9),
		point(health.MetricHeartRate, 72, ts, "watch", 0.9),
	}, "watch")
	require.NoError(t, err)

	fp, err := buffer.Footprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fp.Batches)
	assert.Equal(t, 2, fp.Points)
	assert.Positive(t, fp.Bytes)
}
