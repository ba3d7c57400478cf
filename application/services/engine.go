package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/domain/health"
	domainsync "healthsync/domain/sync"
	pkgerrors "healthsync/pkg/errors"
	"healthsync/pkg/observability"
)

// Engine is the facade the host talks to. It composes collection, offline
// buffering, queue publishing, remote download and maintenance behind the
// small operation set the embedding application needs.
type Engine struct {
	collector   *Collector
	buffer      *Buffer
	publisher   *Publisher
	downloader  *Downloader
	maintenance *Maintenance
	kv          ports.KVStore
	signal      ports.ConnectivitySignal
	metrics     *observability.Metrics
	logger      *zap.Logger

	collectInterval time.Duration
	drainInterval   time.Duration

	mu          sync.Mutex
	initialized bool
	lastCollect time.Time
}

// NewEngine wires the engine facade
func NewEngine(
	collector *Collector,
	buffer *Buffer,
	publisher *Publisher,
	downloader *Downloader,
	maintenance *Maintenance,
	kv ports.KVStore,
	signal ports.ConnectivitySignal,
	metrics *observability.Metrics,
	collectInterval, drainInterval time.Duration,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		collector:       collector,
		buffer:          buffer,
		publisher:       publisher,
		downloader:      downloader,
		maintenance:     maintenance,
		kv:              kv,
		signal:          signal,
		metrics:         metrics,
		collectInterval: collectInterval,
		drainInterval:   drainInterval,
		logger:          logger,
	}
}

// Initialize runs pending storage migrations and an integrity check. It is
// idempotent: a second call finds no pending migrations and no new issues.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.maintenance.Migrate(ctx); err != nil {
		return pkgerrors.Wrap(err, "initialize engine")
	}
	if issues := e.maintenance.Validate(ctx); len(issues) > 0 {
		e.logger.Warn("storage integrity issues found",
			zap.Strings("issues", issues),
		)
	}

	e.initialized = true
	e.logger.Info("sync engine initialized",
		zap.Strings("sources", e.collector.Sources()),
	)
	return nil
}

// CollectResult summarizes one collect-and-persist pass
type CollectResult struct {
	Points   int    `json:"points"`
	BatchID  string `json:"batchId,omitempty"`
	Online   bool   `json:"online"`
	Enqueued bool   `json:"enqueued"`
}

// CollectAndPersist reads the window from every source, resolves conflicts,
// caches the points locally, stages them for remote push, and records the
// day's summary. Works identically online and offline; the only difference
// is whether a drain is kicked off afterwards.
func (e *Engine) CollectAndPersist(ctx context.Context, start, end time.Time) (CollectResult, error) {
	points := e.collector.Collect(ctx, start, end)
	e.metrics.PointsResolved.Add(float64(len(points)))

	result := CollectResult{
		Points: len(points),
		Online: e.signal.Online(),
	}
	if len(points) == 0 {
		return result, nil
	}

	if err := e.cachePoints(ctx, points); err != nil {
		return result, err
	}

	batchID, err := e.buffer.Store(ctx, points, "collector")
	if err != nil {
		return result, err
	}
	result.BatchID = batchID
	result.Enqueued = true

	if err := e.enqueueDailySummaries(ctx, points); err != nil {
		e.logger.Warn("failed to enqueue daily summaries", zap.Error(err))
	}

	e.mu.Lock()
	e.lastCollect = end
	e.mu.Unlock()

	if result.Online {
		if _, err := e.publisher.Drain(ctx); err != nil {
			e.logger.Warn("post-collect drain failed", zap.Error(err))
		}
	}
	return result, nil
}

// cachePoints merges new points into the locally cached list, deduped by id
func (e *Engine) cachePoints(ctx context.Context, points []health.MeasurementPoint) error {
	var cached []health.MeasurementPoint
	e.kv.Get(ctx, ports.KeyHealthDataPoints, &cached)

	seen := make(map[string]struct{}, len(cached))
	for _, p := range cached {
		seen[p.ID] = struct{}{}
	}
	for _, p := range points {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		cached = append(cached, p)
		seen[p.ID] = struct{}{}
	}
	return e.kv.Set(ctx, ports.KeyHealthDataPoints, cached)
}

// enqueueDailySummaries aggregates the collected points per calendar day and
// stages an upsert per day touched. Summaries are low priority: raw points
// go first.
func (e *Engine) enqueueDailySummaries(ctx context.Context, points []health.MeasurementPoint) error {
	byDay := make(map[time.Time][]health.MeasurementPoint)
	for _, p := range points {
		day := p.Timestamp.UTC().Truncate(24 * time.Hour)
		byDay[day] = append(byDay[day], p)
	}

	userID := ""
	if len(points) > 0 {
		userID = points[0].UserID
	}

	for day, dayPoints := range byDay {
		summary := health.Summarize(userID, day, health.Aggregate(dayPoints))
		if err := e.cacheSummary(ctx, summary); err != nil {
			return err
		}
		item, err := domainsync.NewQueueItem(
			domainsync.DailySummary{Summary: summary},
			domainsync.ActionUpdate,
			domainsync.PriorityLow,
		)
		if err != nil {
			return err
		}
		if err := e.publisher.Enqueue(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// cacheSummary upserts the summary into the local list, keyed by user and
// date, so the daily rollups survive offline and age out with cleanup.
func (e *Engine) cacheSummary(ctx context.Context, summary health.DailySummary) error {
	var cached []health.DailySummary
	e.kv.Get(ctx, ports.KeyDailySummaries, &cached)

	replaced := false
	for i, existing := range cached {
		if existing.UserID == summary.UserID && existing.Date == summary.Date {
			cached[i] = summary
			replaced = true
			break
		}
	}
	if !replaced {
		cached = append(cached, summary)
	}
	return e.kv.Set(ctx, ports.KeyDailySummaries, cached)
}

// DrainQueue pushes pending queue items to the remote store
func (e *Engine) DrainQueue(ctx context.Context) (domainsync.DrainResult, error) {
	return e.publisher.Drain(ctx)
}

// DownloadRemote pulls recent remote rows into local storage
func (e *Engine) DownloadRemote(ctx context.Context, since time.Time) (domainsync.DownloadResult, error) {
	return e.downloader.Download(ctx, since)
}

// SyncStatus reports the engine's aggregate sync state
func (e *Engine) SyncStatus(ctx context.Context) domainsync.Status {
	status := e.publisher.Status(ctx)
	if footprint, err := e.buffer.Footprint(ctx); err == nil {
		e.metrics.StorageBytes.Set(float64(footprint.Bytes))
	}
	return status
}

// ForceCleanup runs retention cleanup immediately, bypassing the interval gate
func (e *Engine) ForceCleanup(ctx context.Context) (CleanupReport, error) {
	return e.maintenance.Cleanup(ctx, true)
}

// Run drives the periodic loops until the context is cancelled: scheduled
// collection, scheduled drains, interval-gated cleanup, and an immediate
// drain whenever connectivity comes back.
func (e *Engine) Run(ctx context.Context) error {
	sub := e.signal.Subscribe(func(online bool) {
		if !online {
			return
		}
		e.logger.Info("connectivity restored, draining queue")
		if _, err := e.publisher.Drain(ctx); err != nil {
			e.logger.Warn("reconnect drain failed", zap.Error(err))
		}
	})
	defer sub.Cancel()

	collectTicker := time.NewTicker(e.collectInterval)
	defer collectTicker.Stop()
	drainTicker := time.NewTicker(e.drainInterval)
	defer drainTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-collectTicker.C:
			start := e.windowStart(now)
			if _, err := e.CollectAndPersist(ctx, start, now); err != nil {
				e.logger.Error("scheduled collection failed", zap.Error(err))
			}
			if _, err := e.maintenance.Cleanup(ctx, false); err != nil {
				e.logger.Warn("scheduled cleanup failed", zap.Error(err))
			}

		case <-drainTicker.C:
			if _, err := e.publisher.Drain(ctx); err != nil {
				e.logger.Error("scheduled drain failed", zap.Error(err))
			}
		}
	}
}

// windowStart picks the collection window's lower bound: the end of the
// previous collection, or one interval back on the first run.
func (e *Engine) windowStart(now time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastCollect.IsZero() {
		return now.Add(-e.collectInterval)
	}
	return e.lastCollect
}
