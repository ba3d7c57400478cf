package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"healthsync/application/ports"
	domainsync "healthsync/domain/sync"
	pkgerrors "healthsync/pkg/errors"
	"healthsync/pkg/observability"
)

// Publisher drains the durable sync queue into the remote store. Items are
// processed strictly in priority-then-enqueue order, one at a time, with a
// bounded retry per item. A single in-progress flag serializes drains: a
// drain requested while one runs is a no-op, not an error.
type Publisher struct {
	queue    ports.QueueStore
	batches  ports.BatchStore
	kv       ports.KVStore
	remote   ports.RemoteStore
	identity ports.Identity
	logger   *zap.Logger
	metrics  *observability.Metrics

	draining atomic.Bool

	mu      sync.Mutex
	tally   drainTally
	lastRun *time.Time
}

type drainTally struct {
	synced  int
	failed  int
	dropped int
	lastErr string
}

// NewPublisher creates the queue publisher
func NewPublisher(
	queue ports.QueueStore,
	batches ports.BatchStore,
	kv ports.KVStore,
	remote ports.RemoteStore,
	identity ports.Identity,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Publisher {
	return &Publisher{
		queue:    queue,
		batches:  batches,
		kv:       kv,
		remote:   remote,
		identity: identity,
		metrics:  metrics,
		logger:   logger,
	}
}

// Enqueue appends an item to the durable queue
func (p *Publisher) Enqueue(ctx context.Context, item domainsync.QueueItem) error {
	if err := p.queue.Append(ctx, item); err != nil {
		return pkgerrors.Wrap(err, "enqueue sync item")
	}
	if n, err := p.queue.Count(ctx); err == nil {
		p.metrics.PendingItems.Set(float64(n))
	}
	return nil
}

// Drain pushes pending items to the remote store. It returns a zero-effect
// skipped result when a drain is already in progress or the remote is
// unreachable; absence of connectivity is an expected state, not a failure.
func (p *Publisher) Drain(ctx context.Context) (domainsync.DrainResult, error) {
	if !p.draining.CompareAndSwap(false, true) {
		p.metrics.DrainsSkipped.Inc()
		return domainsync.DrainResult{Skipped: true}, nil
	}
	defer p.draining.Store(false)

	if !p.remote.Reachable(ctx) {
		p.metrics.DrainsSkipped.Inc()
		p.logger.Debug("remote unreachable, drain skipped")
		return domainsync.DrainResult{Skipped: true}, nil
	}

	// Re-read the queue now rather than reusing any earlier view; the
	// store is shared with concurrently scheduled timers.
	items, err := p.queue.All(ctx)
	if err != nil {
		return domainsync.DrainResult{}, pkgerrors.Wrap(err, "read sync queue")
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority.Rank() > items[j].Priority.Rank()
	})

	var result domainsync.DrainResult
	for _, item := range items {
		result.Processed++
		if err := p.publish(ctx, item); err != nil {
			result.Failed++
			if p.fail(ctx, item, err) {
				result.Dropped++
			}
			continue
		}

		if err := p.queue.Remove(ctx, item.ID); err != nil {
			p.logger.Error("failed to remove synced item",
				zap.String("itemId", item.ID),
				zap.Error(err),
			)
			continue
		}
		result.Synced++
		p.metrics.ItemsSynced.Inc()
		p.afterSync(ctx, item)
	}

	p.metrics.Drains.Inc()
	if n, err := p.queue.Count(ctx); err == nil {
		p.metrics.PendingItems.Set(float64(n))
	}
	p.record(result)

	p.logger.Info("drain complete",
		zap.Int("processed", result.Processed),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
		zap.Int("dropped", result.Dropped),
	)
	return result, nil
}

// publish dispatches one item to the remote operation matching its payload
// variant and action.
func (p *Publisher) publish(ctx context.Context, item domainsync.QueueItem) error {
	if _, ok := p.identity.CurrentUserID(); !ok {
		return pkgerrors.NewUnauthorizedError("")
	}

	switch payload := item.Payload.(type) {
	case domainsync.HealthData:
		switch item.Action {
		case domainsync.ActionCreate:
			return p.remote.InsertPoints(ctx, payload.Points)
		case domainsync.ActionUpdate:
			for _, point := range payload.Points {
				if err := p.remote.UpdatePoint(ctx, point); err != nil {
					return err
				}
			}
			return nil
		case domainsync.ActionDelete:
			for _, point := range payload.Points {
				if err := p.remote.DeletePoint(ctx, point.ID); err != nil {
					return err
				}
			}
			return nil
		}

	case domainsync.DailySummary:
		// Summaries are upsert-only, keyed by (date, user)
		return p.remote.UpsertDailySummary(ctx, payload.Summary)

	case domainsync.ChatMessage:
		switch item.Action {
		case domainsync.ActionCreate:
			return p.remote.InsertMessage(ctx, payload.Message)
		case domainsync.ActionUpdate:
			return p.remote.UpdateMessage(ctx, payload.Message)
		case domainsync.ActionDelete:
			return p.remote.DeleteMessage(ctx, payload.Message.ID)
		}

	case domainsync.ConversationContext:
		return p.remote.UpsertConversationContext(ctx, payload.Context)

	case domainsync.UserProfile:
		if item.Action == domainsync.ActionDelete {
			return p.remote.DeleteProfile(ctx, payload.Profile.UserID)
		}
		return p.remote.UpsertProfile(ctx, payload.Profile)

	case domainsync.UserSettings:
		if item.Action == domainsync.ActionDelete {
			return p.remote.DeleteSettings(ctx, payload.Settings.UserID)
		}
		return p.remote.UpsertSettings(ctx, payload.Settings)
	}

	return pkgerrors.NewInternalError(
		fmt.Sprintf("no remote operation for %s %s", item.Action, item.Kind()),
	)
}

// fail applies retry accounting for a failed item. Returns true when the
// item breached the ceiling and was dropped.
func (p *Publisher) fail(ctx context.Context, item domainsync.QueueItem, cause error) bool {
	p.metrics.ItemsFailed.Inc()
	item.RetryCount++

	p.mu.Lock()
	p.tally.lastErr = cause.Error()
	p.mu.Unlock()

	if item.Exhausted() {
		// Bounded retry is a hard invariant: drop rather than retry forever
		if err := p.queue.Remove(ctx, item.ID); err != nil {
			p.logger.Error("failed to drop exhausted item",
				zap.String("itemId", item.ID),
				zap.Error(err),
			)
			return false
		}
		p.metrics.ItemsDropped.Inc()
		p.logger.Warn("queue item dropped after max retries",
			zap.String("itemId", item.ID),
			zap.String("entityType", string(item.Kind())),
			zap.Int("attempts", item.RetryCount),
			zap.Error(cause),
		)
		return true
	}

	if err := p.queue.Update(ctx, item); err != nil {
		p.logger.Error("failed to record retry",
			zap.String("itemId", item.ID),
			zap.Error(err),
		)
		return false
	}
	p.logger.Debug("queue item marked for retry",
		zap.String("itemId", item.ID),
		zap.String("entityType", string(item.Kind())),
		zap.Int("attempts", item.RetryCount),
		zap.Error(cause),
	)
	return false
}

// afterSync applies local bookkeeping for a successfully pushed item
func (p *Publisher) afterSync(ctx context.Context, item domainsync.QueueItem) {
	payload, ok := item.Payload.(domainsync.HealthData)
	if !ok || payload.BatchID == "" {
		return
	}
	if err := p.batches.MarkSynced(ctx, payload.BatchID); err != nil {
		p.logger.Warn("failed to mark batch synced",
			zap.String("batchId", payload.BatchID),
			zap.Error(err),
		)
	}
}

func (p *Publisher) record(result domainsync.DrainResult) {
	now := time.Now().UTC()
	p.mu.Lock()
	p.tally.synced += result.Synced
	p.tally.failed += result.Failed
	p.tally.dropped += result.Dropped
	if result.Synced > 0 {
		p.lastRun = &now
	}
	p.mu.Unlock()
}

// Status reports the aggregate counters the host shows instead of raw errors
func (p *Publisher) Status(ctx context.Context) domainsync.Status {
	pending, err := p.queue.Count(ctx)
	if err != nil {
		p.logger.Warn("failed to count pending items", zap.Error(err))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return domainsync.Status{
		Online:       p.remote.Reachable(ctx),
		Draining:     p.draining.Load(),
		PendingItems: pending,
		SyncedItems:  p.tally.synced,
		FailedItems:  p.tally.failed,
		DroppedItems: p.tally.dropped,
		LastSyncedAt: p.lastRun,
		LastError:    p.tally.lastErr,
	}
}
