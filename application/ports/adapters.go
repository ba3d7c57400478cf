package ports

import (
	"context"
	"time"

	"healthsync/domain/health"
)

// PointHandler receives push-style updates from a measurement source
type PointHandler func(points []health.MeasurementPoint)

// Subscription is the cancellation handle returned by SourceAdapter.Subscribe
type Subscription interface {
	Cancel()
}

// SourceAdapter is the capability contract each external measurement source
// satisfies. Readings must not fail for a single missing metric; it returns
// what it has for the window.
type SourceAdapter interface {
	// Name identifies the source on produced points
	Name() string

	// Available reports whether the source can currently be read
	Available(ctx context.Context) bool

	// RequestPermissions asks the source for read access
	RequestPermissions(ctx context.Context) (bool, error)

	// Readings returns the source's points within [start, end]
	Readings(ctx context.Context, start, end time.Time) ([]health.MeasurementPoint, error)

	// Subscribe registers a handler for push updates; cancel via the
	// returned subscription
	Subscribe(handler PointHandler) (Subscription, error)
}

// ConnectivityHandler is notified on online/offline transitions
type ConnectivityHandler func(online bool)

// ConnectivitySignal exposes the current network state and transition events
type ConnectivitySignal interface {
	// Online reports the last observed state
	Online() bool

	// Subscribe registers a transition handler
	Subscribe(handler ConnectivityHandler) Subscription
}
