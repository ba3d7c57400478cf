package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/application/services"
	"healthsync/infrastructure/config"
	"healthsync/infrastructure/persistence/memory"
	"healthsync/pkg/observability"
)

type staticSignal bool

func (s staticSignal) Online() bool { return bool(s) }
func (s staticSignal) Subscribe(handler ports.ConnectivityHandler) ports.Subscription {
	return noopSubscription{}
}

type noopSubscription struct{}

func (noopSubscription) Cancel() {}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	kv := memory.NewKVStore()
	queue := memory.NewQueueStore()
	batches := memory.NewBatchStore()
	snapshots := memory.NewSnapshotStore()
	remote := memory.NewRemoteStore()
	metrics := observability.NewNopMetrics()
	identity := ports.StaticIdentity("user-1")

	collector := services.NewCollector(logger)
	buffer := services.NewBuffer(batches, queue, logger)
	publisher := services.NewPublisher(queue, batches, kv, remote, identity, metrics, logger)
	downloader := services.NewDownloader(kv, remote, identity, logger)
	maintenance := services.NewMaintenance(kv, batches, queue, snapshots, 24*time.Hour, 30, logger)
	engine := services.NewEngine(
		collector, buffer, publisher, downloader, maintenance,
		kv, staticSignal(true), metrics,
		15*time.Minute, time.Minute,
		logger,
	)
	require.NoError(t, engine.Initialize(context.Background()))

	cfg := &config.Config{Environment: "test"}
	router := NewRouter(cfg, engine, buffer, logger)
	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return server
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSyncStatusEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/sync/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestDrainEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/v1/sync/drain", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCleanupEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/v1/cleanup", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPointsEndpointRejectsBadTimestamp(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/points?start=yesterday")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpointDisabledByDefault(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
