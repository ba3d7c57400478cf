package di

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/application/services"
	"healthsync/infrastructure/config"
	"healthsync/infrastructure/connectivity"
	"healthsync/infrastructure/persistence/memory"
	"healthsync/infrastructure/persistence/sqlite"
	"healthsync/infrastructure/remote/supabase"
	"healthsync/pkg/observability"
)

// ProvideLogger creates the logger for the configured environment
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideStore opens the local SQLite store
func ProvideStore(cfg *config.Config) (*sqlite.Store, error) {
	return sqlite.Open(sqlite.Config{
		Path:     cfg.DatabasePath,
		InMemory: cfg.InMemory,
	})
}

// ProvideKVStore creates the key-value partition store
func ProvideKVStore(store *sqlite.Store, logger *zap.Logger) ports.KVStore {
	return sqlite.NewKVStore(store, logger)
}

// ProvideQueueStore creates the sync queue partition store
func ProvideQueueStore(store *sqlite.Store, logger *zap.Logger) ports.QueueStore {
	return sqlite.NewQueueStore(store, logger)
}

// ProvideBatchStore creates the offline buffer partition store
func ProvideBatchStore(store *sqlite.Store, logger *zap.Logger) ports.BatchStore {
	return sqlite.NewBatchStore(store, logger)
}

// ProvideSnapshotStore creates the backup snapshot store
func ProvideSnapshotStore(store *sqlite.Store) ports.SnapshotStore {
	return sqlite.NewSnapshotStore(store)
}

// ProvideRemoteStore creates the Supabase remote store, or an in-memory
// stand-in when no backend URL is configured.
func ProvideRemoteStore(cfg *config.Config, logger *zap.Logger) (ports.RemoteStore, error) {
	if cfg.SupabaseURL == "" {
		logger.Warn("no remote backend configured, using in-memory remote")
		return memory.NewRemoteStore(), nil
	}
	return supabase.New(supabase.Config{
		URL: cfg.SupabaseURL,
		Key: cfg.SupabaseKey,
	}, logger)
}

// ProvideIdentity creates the identity source from configuration
func ProvideIdentity(cfg *config.Config) ports.Identity {
	return ports.StaticIdentity(cfg.UserID)
}

// ProvideMetrics creates the Prometheus metric set
func ProvideMetrics(cfg *config.Config) *observability.Metrics {
	if !cfg.EnableMetrics {
		return observability.NewNopMetrics()
	}
	return observability.NewMetrics(prometheus.DefaultRegisterer)
}

// ProvideConnectivity creates the connectivity monitor, probing the remote
func ProvideConnectivity(cfg *config.Config, remote ports.RemoteStore, logger *zap.Logger) *connectivity.Monitor {
	return connectivity.NewMonitor(
		connectivity.ProberFunc(remote.Reachable),
		cfg.ConnectivityInterval,
		logger,
	)
}

// ProvideCollector creates the source collector
func ProvideCollector(logger *zap.Logger) *services.Collector {
	return services.NewCollector(logger)
}

// ProvideBuffer creates the offline point buffer
func ProvideBuffer(batches ports.BatchStore, queue ports.QueueStore, logger *zap.Logger) *services.Buffer {
	return services.NewBuffer(batches, queue, logger)
}

// ProvidePublisher creates the queue publisher
func ProvidePublisher(
	queue ports.QueueStore,
	batches ports.BatchStore,
	kv ports.KVStore,
	remote ports.RemoteStore,
	identity ports.Identity,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.Publisher {
	return services.NewPublisher(queue, batches, kv, remote, identity, metrics, logger)
}

// ProvideDownloader creates the remote downloader
func ProvideDownloader(
	kv ports.KVStore,
	remote ports.RemoteStore,
	identity ports.Identity,
	logger *zap.Logger,
) *services.Downloader {
	return services.NewDownloader(kv, remote, identity, logger)
}

// ProvideMaintenance creates the maintenance service with the built-in
// storage migrations registered.
func ProvideMaintenance(
	cfg *config.Config,
	kv ports.KVStore,
	batches ports.BatchStore,
	queue ports.QueueStore,
	snapshots ports.SnapshotStore,
	logger *zap.Logger,
) (*services.Maintenance, error) {
	m := services.NewMaintenance(
		kv, batches, queue, snapshots,
		cfg.CleanupInterval, cfg.RetentionDays,
		logger,
	)
	for _, migration := range services.BuiltinMigrations() {
		if err := m.Register(migration); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ProvideEngine wires the engine facade
func ProvideEngine(
	cfg *config.Config,
	collector *services.Collector,
	buffer *services.Buffer,
	publisher *services.Publisher,
	downloader *services.Downloader,
	maintenance *services.Maintenance,
	kv ports.KVStore,
	monitor *connectivity.Monitor,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.Engine {
	return services.NewEngine(
		collector, buffer, publisher, downloader, maintenance,
		kv, monitor, metrics,
		cfg.CollectInterval, cfg.DrainInterval,
		logger,
	)
}
