//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"healthsync/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideStore,
	ProvideKVStore,
	ProvideQueueStore,
	ProvideBatchStore,
	ProvideSnapshotStore,
	ProvideRemoteStore,
	ProvideIdentity,
	ProvideMetrics,
	ProvideConnectivity,
	ProvideCollector,
	ProvideBuffer,
	ProvidePublisher,
	ProvideDownloader,
	ProvideMaintenance,
	ProvideEngine,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
