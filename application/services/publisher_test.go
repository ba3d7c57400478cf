package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/domain/chat"
	"healthsync/domain/health"
	domainsync "healthsync/domain/sync"
	"healthsync/infrastructure/persistence/memory"
	"healthsync/pkg/observability"
)

func newTestPublisher(t *testing.T, remote *memory.RemoteStore) (*Publisher, *memory.QueueStore, *memory.BatchStore) {
	t.Helper()
	queue := memory.NewQueueStore()
	batches := memory.NewBatchStore()
	kv := memory.NewKVStore()
	p := NewPublisher(
		queue, batches, kv, remote,
		ports.StaticIdentity("user-1"),
		observability.NewNopMetrics(),
		zap.NewNop(),
	)
	return p, queue, batches
}

func enqueueMessage(t *testing.T, p *Publisher, priority domainsync.Priority, id string) domainsync.QueueItem {
	t.Helper()
	item, err := domainsync.NewQueueItem(
		domainsync.ChatMessage{Message: chat.Message{
			ID:        id,
			Content:   "hello",
			Sender:    "user-1",
			Type:      "text",
			CreatedAt: time.Now().UTC(),
		}},
		domainsync.ActionCreate,
		priority,
	)
	require.NoError(t, err)
	require.NoError(t, p.Enqueue(context.Background(), item))
	return item
}

func TestDrainPushesAndRemovesItems(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	p, queue, batches := newTestPublisher(t, remote)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	batch, err := health.NewOfflineBatch([]health.MeasurementPoint{
		point(health.MetricSteps, 500, ts, "watch", 0.9),
	}, "watch")
	require.NoError(t, err)
	require.NoError(t, batches.Append(ctx, batch))

	item, err := domainsync.NewQueueItem(
		domainsync.HealthData{BatchID: batch.ID, Points: batch.Points},
		domainsync.ActionCreate,
		domainsync.PriorityNormal,
	)
	require.NoError(t, err)
	require.NoError(t, p.Enqueue(ctx, item))

	result, err := p.Drain(ctx)
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, remote.PointCount())

	pending, err := queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	// Successful push marks the source batch synced
	all, err := batches.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Synced)
}

func TestDrainRespectsPriorityOrder(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	p, _, _ := newTestPublisher(t, remote)

	enqueueMessage(t, p, domainsync.PriorityLow, "low-1")
	enqueueMessage(t, p, domainsync.PriorityHigh, "high-1")
	enqueueMessage(t, p, domainsync.PriorityNormal, "normal-1")

	var order []string
	p.remote = &orderProbe{RemoteStore: remote, inner: remote, order: &order}

	result, err := p.Drain(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Synced)
	require.Equal(t, []string{"high-1", "normal-1", "low-1"}, order)
}

// orderProbe records message insert order while delegating to the inner store
type orderProbe struct {
	ports.RemoteStore
	inner *memory.RemoteStore
	order *[]string
}

func (o *orderProbe) Reachable(ctx context.Context) bool { return o.inner.Reachable(ctx) }

func (o *orderProbe) InsertMessage(ctx context.Context, msg chat.Message) error {
	*o.order = append(*o.order, msg.ID)
	return o.inner.InsertMessage(ctx, msg)
}

func TestDrainBoundedRetry(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	p, queue, _ := newTestPublisher(t, remote)

	enqueueMessage(t, p, domainsync.PriorityNormal, "doomed")
	remote.SetFail(errors.New("backend rejects everything"))

	// Remote stays reachable but every push fails; after MaxRetries drains
	// the item must be gone, not retried forever.
	for i := 0; i < domainsync.MaxRetries; i++ {
		result, err := p.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
	}

	pending, err := queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending, "item should be dropped after retry ceiling")

	status := p.Status(ctx)
	assert.Equal(t, 1, status.DroppedItems)
	assert.NotEmpty(t, status.LastError)
}

func TestDrainSkippedWhenUnreachable(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	remote.SetOnline(false)
	p, queue, _ := newTestPublisher(t, remote)

	enqueueMessage(t, p, domainsync.PriorityNormal, "waiting")

	result, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, result.Processed)

	pending, err := queue.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "items must survive an offline drain untouched")
}

func TestDrainSkippedWhenAlreadyDraining(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	p, _, _ := newTestPublisher(t, remote)

	enqueueMessage(t, p, domainsync.PriorityNormal, "queued")

	require.True(t, p.draining.CompareAndSwap(false, true))
	result, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	p.draining.Store(false)
}

func TestDrainFailsItemsWithoutIdentity(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	p, queue, _ := newTestPublisher(t, remote)
	p.identity = ports.StaticIdentity("")

	enqueueMessage(t, p, domainsync.PriorityNormal, "orphan")

	result, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, remote.MessageCount())

	// Item is retried, not dropped, on the first failure
	items, err := queue.All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].RetryCount)
}
