package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/domain/health"
	"healthsync/infrastructure/persistence/memory"
	"healthsync/pkg/observability"
)

// fakeSignal is a settable connectivity signal
type fakeSignal struct {
	mu       sync.Mutex
	online   bool
	handlers []ports.ConnectivityHandler
}

func (f *fakeSignal) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeSignal) Subscribe(handler ports.ConnectivityHandler) ports.Subscription {
	f.mu.Lock()
	f.handlers = append(f.handlers, handler)
	f.mu.Unlock()
	return fakeSubscription{}
}

func (f *fakeSignal) set(online bool) {
	f.mu.Lock()
	changed := online != f.online
	f.online = online
	handlers := append([]ports.ConnectivityHandler(nil), f.handlers...)
	f.mu.Unlock()
	if !changed {
		return
	}
	for _, h := range handlers {
		h(online)
	}
}

type fakeSubscription struct{}

func (fakeSubscription) Cancel() {}

type engineFixture struct {
	engine *Engine
	remote *memory.RemoteStore
	signal *fakeSignal
	kv     *memory.KVStore
	queue  *memory.QueueStore
	source *fakeAdapter
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	logger := zap.NewNop()
	kv := memory.NewKVStore()
	queue := memory.NewQueueStore()
	batches := memory.NewBatchStore()
	snapshots := memory.NewSnapshotStore()
	remote := memory.NewRemoteStore()
	signal := &fakeSignal{online: true}
	metrics := observability.NewNopMetrics()
	identity := ports.StaticIdentity("user-1")

	source := &fakeAdapter{name: "watch", available: true}
	collector := NewCollector(logger)
	collector.Register(source)

	buffer := NewBuffer(batches, queue, logger)
	publisher := NewPublisher(queue, batches, kv, remote, identity, metrics, logger)
	downloader := NewDownloader(kv, remote, identity, logger)
	maintenance := NewMaintenance(kv, batches, queue, snapshots, 24*time.Hour, 30, logger)
	for _, migration := range BuiltinMigrations() {
		require.NoError(t, maintenance.Register(migration))
	}

	engine := NewEngine(
		collector, buffer, publisher, downloader, maintenance,
		kv, signal, metrics,
		15*time.Minute, time.Minute,
		logger,
	)
	return &engineFixture{
		engine: engine,
		remote: remote,
		signal: signal,
		kv:     kv,
		queue:  queue,
		source: source,
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := newEngineFixture(t)

	require.NoError(t, fx.engine.Initialize(ctx))

	var version string
	require.True(t, fx.kv.Get(ctx, ports.KeyStorageVersion, &version))
	assert.Equal(t, "1.2.0", version)

	// A second pass finds nothing to migrate and changes nothing
	require.NoError(t, fx.engine.Initialize(ctx))
	require.True(t, fx.kv.Get(ctx, ports.KeyStorageVersion, &version))
	assert.Equal(t, "1.2.0", version)
}

func TestCollectAndPersistOnline(t *testing.T) {
	ctx := context.Background()
	fx := newEngineFixture(t)
	require.NoError(t, fx.engine.Initialize(ctx))

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	fx.source.points = []health.MeasurementPoint{
		point(health.MetricSteps, 500, ts, "watch", 0.9),
		point(health.MetricHeartRate, 72, ts, "watch", 0.9),
	}

	result, err := fx.engine.CollectAndPersist(ctx, ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Points)
	assert.True(t, result.Online)

	// Online collection drains immediately: nothing left queued, points remote
	pending, err := fx.queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, 2, fx.remote.PointCount())

	// And the points land in the local cache as well
	var cached []health.MeasurementPoint
	require.True(t, fx.kv.Get(ctx, ports.KeyHealthDataPoints, &cached))
	assert.Len(t, cached, 2)

	// The day's rollup is cached locally, one row per (user, date)
	var summaries []health.DailySummary
	require.True(t, fx.kv.Get(ctx, ports.KeyDailySummaries, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "2026-03-14", summaries[0].Date)
	assert.Equal(t, float64(500), summaries[0].Steps)
}

func TestCollectAndPersistOffline(t *testing.T) {
	ctx := context.Background()
	fx := newEngineFixture(t)
	require.NoError(t, fx.engine.Initialize(ctx))

	fx.signal.set(false)
	fx.remote.SetOnline(false)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	fx.source.points = []health.MeasurementPoint{
		point(health.MetricSteps, 500, ts, "watch", 0.9),
	}

	result, err := fx.engine.CollectAndPersist(ctx, ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, result.Online)
	assert.NotEmpty(t, result.BatchID)

	pending, err := fx.queue.Count(ctx)
	require.NoError(t, err)
	assert.Positive(t, pending, "offline collection must stage work for later")
	assert.Zero(t, fx.remote.PointCount())

	// Connectivity returns: a drain empties the queue
	fx.remote.SetOnline(true)
	fx.signal.set(true)
	drain, err := fx.engine.DrainQueue(ctx)
	require.NoError(t, err)
	assert.Positive(t, drain.Synced)
	assert.Equal(t, 1, fx.remote.PointCount())
}

func TestSyncStatusReflectsQueueDepth(t *testing.T) {
	ctx := context.Background()
	fx := newEngineFixture(t)
	require.NoError(t, fx.engine.Initialize(ctx))

	fx.signal.set(false)
	fx.remote.SetOnline(false)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	fx.source.points = []health.MeasurementPoint{
		point(health.MetricSteps, 500, ts, "watch", 0.9),
	}
	_, err := fx.engine.CollectAndPersist(ctx, ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)

	status := fx.engine.SyncStatus(ctx)
	assert.False(t, status.Online)
	assert.Positive(t, status.PendingItems)
	assert.False(t, status.Draining)
}
