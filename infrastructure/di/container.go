package di

import (
	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/application/services"
	"healthsync/infrastructure/config"
	"healthsync/infrastructure/connectivity"
	"healthsync/infrastructure/persistence/sqlite"
	"healthsync/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Store       *sqlite.Store
	KV          ports.KVStore
	Queue       ports.QueueStore
	Batches     ports.BatchStore
	Snapshots   ports.SnapshotStore
	Remote      ports.RemoteStore
	Identity    ports.Identity
	Metrics     *observability.Metrics
	Monitor     *connectivity.Monitor
	Collector   *services.Collector
	Buffer      *services.Buffer
	Publisher   *services.Publisher
	Downloader  *services.Downloader
	Maintenance *services.Maintenance
	Engine      *services.Engine
}

// Close releases held resources
func (c *Container) Close() error {
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}
