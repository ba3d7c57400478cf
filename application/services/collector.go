package services

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/domain/health"
)

// conflictBucket is the resolution window: readings of the same metric within
// one bucket are considered the same fact told by different sources.
const conflictBucket = 5 * time.Minute

// Collector pulls readings from every registered measurement source and
// resolves overlapping readings into one fact per metric per time bucket.
// It has no side effects; persistence belongs to the caller.
type Collector struct {
	adapters []ports.SourceAdapter
	logger   *zap.Logger
}

// NewCollector creates a collector with no registered sources
func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{logger: logger}
}

// Register adds a measurement source
func (c *Collector) Register(adapter ports.SourceAdapter) {
	c.adapters = append(c.adapters, adapter)
}

// Sources returns the names of registered adapters
func (c *Collector) Sources() []string {
	names := make([]string, 0, len(c.adapters))
	for _, a := range c.adapters {
		names = append(names, a.Name())
	}
	return names
}

// Collect reads [start, end] from every registered source and returns the
// conflict-resolved point set. A failing source is logged and skipped; a
// single bad adapter never aborts the whole collection.
func (c *Collector) Collect(ctx context.Context, start, end time.Time) []health.MeasurementPoint {
	var raw []health.MeasurementPoint

	for _, adapter := range c.adapters {
		if !adapter.Available(ctx) {
			c.logger.Debug("source unavailable, skipping",
				zap.String("source", adapter.Name()),
			)
			continue
		}

		points, err := adapter.Readings(ctx, start, end)
		if err != nil {
			c.logger.Warn("source read failed, skipping",
				zap.String("source", adapter.Name()),
				zap.Error(err),
			)
			continue
		}
		raw = append(raw, points...)
	}

	resolved := ResolveConflicts(raw)

	c.logger.Debug("collection complete",
		zap.Int("sources", len(c.adapters)),
		zap.Int("rawPoints", len(raw)),
		zap.Int("resolvedPoints", len(resolved)),
	)
	return resolved
}

type bucketKey struct {
	metric health.Metric
	slot   int64
}

// ResolveConflicts keeps exactly one point per (metric, 5-minute bucket):
// strictly higher confidence wins; on an exact tie the later timestamp wins;
// a full tie keeps the first-seen point. Deterministic and idempotent.
func ResolveConflicts(points []health.MeasurementPoint) []health.MeasurementPoint {
	if len(points) == 0 {
		return nil
	}

	winners := make(map[bucketKey]health.MeasurementPoint, len(points))
	order := make([]bucketKey, 0, len(points))

	for _, p := range points {
		key := bucketKey{
			metric: p.Metric,
			slot:   p.Timestamp.Unix() / int64(conflictBucket.Seconds()),
		}
		current, seen := winners[key]
		if !seen {
			winners[key] = p
			order = append(order, key)
			continue
		}
		if supersedes(p, current) {
			winners[key] = p
		}
	}

	resolved := make([]health.MeasurementPoint, 0, len(order))
	for _, key := range order {
		resolved = append(resolved, winners[key])
	}
	sort.SliceStable(resolved, func(i, j int) bool {
		if !resolved[i].Timestamp.Equal(resolved[j].Timestamp) {
			return resolved[i].Timestamp.Before(resolved[j].Timestamp)
		}
		return resolved[i].Metric < resolved[j].Metric
	})
	return resolved
}

// supersedes reports whether candidate should replace current within a bucket
func supersedes(candidate, current health.MeasurementPoint) bool {
	if candidate.Confidence != current.Confidence {
		return candidate.Confidence > current.Confidence
	}
	return candidate.Timestamp.After(current.Timestamp)
}
