// Package observability exposes the engine's operational counters.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments the engine updates. The host
// application decides whether and where to expose them.
type Metrics struct {
	ItemsSynced    prometheus.Counter
	ItemsFailed    prometheus.Counter
	ItemsDropped   prometheus.Counter
	Drains         prometheus.Counter
	DrainsSkipped  prometheus.Counter
	PointsResolved prometheus.Counter

	PendingItems prometheus.Gauge
	StorageBytes prometheus.Gauge
}

// NewMetrics creates and registers the engine metrics on the registry.
// Pass prometheus.NewRegistry() in tests to avoid global registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "healthsync",
			Name:      "queue_items_synced_total",
			Help:      "Queue items successfully pushed to the remote store.",
		}),
		ItemsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "healthsync",
			Name:      "queue_items_failed_total",
			Help:      "Queue item push attempts that failed.",
		}),
		ItemsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "healthsync",
			Name:      "queue_items_dropped_total",
			Help:      "Queue items dropped after exhausting the retry ceiling.",
		}),
		Drains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "healthsync",
			Name:      "queue_drains_total",
			Help:      "Completed drain passes.",
		}),
		DrainsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "healthsync",
			Name:      "queue_drains_skipped_total",
			Help:      "Drain requests skipped because one was in progress or the remote was unreachable.",
		}),
		PointsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "healthsync",
			Name:      "points_resolved_total",
			Help:      "Measurement points surviving conflict resolution.",
		}),
		PendingItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "healthsync",
			Name:      "queue_pending_items",
			Help:      "Queue items currently awaiting push.",
		}),
		StorageBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "healthsync",
			Name:      "offline_buffer_bytes",
			Help:      "Approximate byte size of the offline point buffer.",
		}),
	}

	reg.MustRegister(
		m.ItemsSynced, m.ItemsFailed, m.ItemsDropped,
		m.Drains, m.DrainsSkipped, m.PointsResolved,
		m.PendingItems, m.StorageBytes,
	)
	return m
}

// NewNopMetrics creates unregistered metrics for tests
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
