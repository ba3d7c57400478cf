// Package connectivity tracks network reachability for the sync engine.
// The monitor polls a prober and broadcasts online/offline transitions to
// subscribed handlers.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"healthsync/application/ports"
)

// Prober answers whether the network path to the backend is currently up
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a function to the Prober interface
type ProberFunc func(ctx context.Context) bool

// Probe implements Prober
func (f ProberFunc) Probe(ctx context.Context) bool { return f(ctx) }

// Monitor implements ports.ConnectivitySignal by polling a prober. Handlers
// are invoked only on transitions, never on steady state.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	online   bool
	handlers map[int]ports.ConnectivityHandler
	nextID   int
}

// NewMonitor creates a monitor that assumes offline until the first probe
func NewMonitor(prober Prober, interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger,
		handlers: make(map[int]ports.ConnectivityHandler),
	}
}

// Online reports the last observed state
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

type subscription struct {
	cancel func()
}

func (s subscription) Cancel() { s.cancel() }

// Subscribe registers a transition handler
func (m *Monitor) Subscribe(handler ports.ConnectivityHandler) ports.Subscription {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = handler
	m.mu.Unlock()

	return subscription{cancel: func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}}
}

// Run polls until the context is cancelled. The first probe fires
// immediately so startup does not wait a full interval for a state.
func (m *Monitor) Run(ctx context.Context) {
	m.observe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.observe(ctx)
		}
	}
}

func (m *Monitor) observe(ctx context.Context) {
	online := m.prober.Probe(ctx)

	m.mu.Lock()
	changed := online != m.online
	m.online = online
	var handlers []ports.ConnectivityHandler
	if changed {
		for _, h := range m.handlers {
			handlers = append(handlers, h)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Info("connectivity changed", zap.Bool("online", online))
	for _, handler := range handlers {
		handler(online)
	}
}
