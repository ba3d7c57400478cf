package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/domain/chat"
	"healthsync/domain/health"
	domainsync "healthsync/domain/sync"
	"healthsync/domain/user"
	"healthsync/infrastructure/persistence/memory"
	pkgerrors "healthsync/pkg/errors"
)

func newTestMaintenance(t *testing.T) (*Maintenance, *memory.KVStore) {
	t.Helper()
	kv := memory.NewKVStore()
	m := NewMaintenance(
		kv,
		memory.NewBatchStore(),
		memory.NewQueueStore(),
		memory.NewSnapshotStore(),
		24*time.Hour,
		30,
		zap.NewNop(),
	)
	return m, kv
}

func TestMigrationsRunInSemverOrder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMaintenance(t)

	var ran []string
	for _, version := range []string{"1.10.0", "1.2.0", "1.9.0"} {
		v := version
		require.NoError(t, m.Register(Migration{
			Version:     v,
			Description: "ordering check",
			Apply: func(ctx context.Context, kv ports.KVStore) error {
				ran = append(ran, v)
				return nil
			},
		}))
	}

	require.NoError(t, m.Migrate(ctx))
	assert.Equal(t, []string{"1.2.0", "1.9.0", "1.10.0"}, ran)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMaintenance(t)

	runs := 0
	require.NoError(t, m.Register(Migration{
		Version:     "1.0.0",
		Description: "runs once",
		Apply: func(ctx context.Context, kv ports.KVStore) error {
			runs++
			return nil
		},
	}))

	require.NoError(t, m.Migrate(ctx))
	require.NoError(t, m.Migrate(ctx))
	assert.Equal(t, 1, runs, "a completed migration must never run again")
}

func TestFailedMigrationRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	m, kv := newTestMaintenance(t)

	require.NoError(t, kv.Set(ctx, "precious", "before"))

	require.NoError(t, m.Register(Migration{
		Version:     "2.0.0",
		Description: "corrupts then fails",
		Apply: func(ctx context.Context, kv ports.KVStore) error {
			if err := kv.Set(ctx, "precious", "corrupted"); err != nil {
				return err
			}
			if err := kv.Set(ctx, "stray", "should vanish"); err != nil {
				return err
			}
			return errors.New("midway failure")
		},
	}))

	err := m.Migrate(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsMigration(err))

	var precious string
	require.True(t, kv.Get(ctx, "precious", &precious))
	assert.Equal(t, "before", precious)

	var stray string
	assert.False(t, kv.Get(ctx, "stray", &stray), "keys written by the failed migration must be rolled back")

	// Storage version must not advance past a failed migration
	var version string
	assert.False(t, kv.Get(ctx, ports.KeyStorageVersion, &version))
}

func TestRegisterRejectsInvalidVersion(t *testing.T) {
	m, _ := newTestMaintenance(t)
	err := m.Register(Migration{Version: "not-semver"})
	assert.Error(t, err)
}

func TestValidateReportsBrokenRecords(t *testing.T) {
	ctx := context.Background()
	m, kv := newTestMaintenance(t)

	require.NoError(t, kv.Set(ctx, ports.KeyChatMessages, []chat.Message{
		{ID: "ok", Content: "hi", Sender: "user-1", Type: "text"},
		{ID: "", Content: "", Sender: "user-1", Type: "text"},
	}))

	issues := m.Validate(ctx)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "chat message 1")
}

func TestCleanupEnforcesMessageCap(t *testing.T) {
	ctx := context.Background()
	m, kv := newTestMaintenance(t)

	messages := make([]chat.Message, 1200)
	for i := range messages {
		messages[i] = chat.Message{
			ID:        fmt.Sprintf("msg-%04d", i),
			Content:   "x",
			Sender:    "user-1",
			Type:      "text",
			CreatedAt: time.Now().UTC(),
		}
	}
	require.NoError(t, kv.Set(ctx, ports.KeyChatMessages, messages))

	report, err := m.Cleanup(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 200, report.MessagesRemoved)

	var kept []chat.Message
	require.True(t, kv.Get(ctx, ports.KeyChatMessages, &kept))
	require.Len(t, kept, maxStoredMessages)
	// FIFO: the oldest entries go first
	assert.Equal(t, "msg-0200", kept[0].ID)
	assert.Equal(t, "msg-1199", kept[len(kept)-1].ID)
}

func TestCleanupDropsOldestPointsOverCap(t *testing.T) {
	ctx := context.Background()
	m, kv := newTestMaintenance(t)

	// All within the retention window so only the cap applies
	base := time.Now().UTC().Add(-8 * 24 * time.Hour)
	points := make([]health.MeasurementPoint, maxStoredPoints+5)
	for i := range points {
		points[i] = point(health.MetricSteps, float64(i), base.Add(time.Duration(i)*time.Minute), "watch", 0.9)
	}
	require.NoError(t, kv.Set(ctx, ports.KeyHealthDataPoints, points))

	report, err := m.Cleanup(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 5, report.PointsRemoved)

	var kept []health.MeasurementPoint
	require.True(t, kv.Get(ctx, ports.KeyHealthDataPoints, &kept))
	require.Len(t, kept, maxStoredPoints)
	assert.True(t, kept[0].Timestamp.After(base.Add(4*time.Minute)), "the oldest points must be the ones removed")
}

func TestCleanupIntervalGate(t *testing.T) {
	ctx := context.Background()
	m, kv := newTestMaintenance(t)

	require.NoError(t, kv.Set(ctx, ports.KeyLastCleanup, time.Now().UTC()))

	report, err := m.Cleanup(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	forced, err := m.Cleanup(ctx, true)
	require.NoError(t, err)
	assert.False(t, forced.Skipped)
}

func TestCleanupPurgesRowsPastRetentionWindow(t *testing.T) {
	ctx := context.Background()
	m, kv := newTestMaintenance(t)

	now := time.Now().UTC()
	stale := now.AddDate(0, 0, -45)
	recent := now.Add(-time.Hour)

	messages := []chat.Message{
		{ID: "m-old", Content: "x", Sender: "user-1", Type: "text", CreatedAt: stale},
		{ID: "m-new", Content: "y", Sender: "user-1", Type: "text", CreatedAt: recent},
	}
	require.NoError(t, kv.Set(ctx, ports.KeyChatMessages, messages))

	points := []health.MeasurementPoint{
		point(health.MetricSteps, 100, stale, "watch", 0.9),
		point(health.MetricSteps, 200, recent, "watch", 0.9),
	}
	require.NoError(t, kv.Set(ctx, ports.KeyHealthDataPoints, points))

	summaries := []health.DailySummary{
		{UserID: "user-1", Date: stale.Format("2006-01-02"), Steps: 100, UpdatedAt: stale},
		{UserID: "user-1", Date: recent.Format("2006-01-02"), Steps: 200, UpdatedAt: recent},
		{UserID: "user-1", Date: "not-a-date", Steps: 1, UpdatedAt: stale},
	}
	require.NoError(t, kv.Set(ctx, ports.KeyDailySummaries, summaries))

	report, err := m.Cleanup(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MessagesRemoved)
	assert.Equal(t, 1, report.PointsRemoved)
	assert.Equal(t, 1, report.SummariesRemoved)

	var keptMessages []chat.Message
	require.True(t, kv.Get(ctx, ports.KeyChatMessages, &keptMessages))
	require.Len(t, keptMessages, 1)
	assert.Equal(t, "m-new", keptMessages[0].ID)

	var keptPoints []health.MeasurementPoint
	require.True(t, kv.Get(ctx, ports.KeyHealthDataPoints, &keptPoints))
	require.Len(t, keptPoints, 1)
	assert.Equal(t, float64(200), keptPoints[0].Value)

	// The unparseable summary row is kept, not silently destroyed
	var keptSummaries []health.DailySummary
	require.True(t, kv.Get(ctx, ports.KeyDailySummaries, &keptSummaries))
	require.Len(t, keptSummaries, 2)
	assert.Equal(t, recent.Format("2006-01-02"), keptSummaries[0].Date)
	assert.Equal(t, "not-a-date", keptSummaries[1].Date)
}

func TestFailedMigrationRestoresSensitivePartitionAndQueue(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	queue := memory.NewQueueStore()
	m := NewMaintenance(
		kv,
		memory.NewBatchStore(),
		queue,
		memory.NewSnapshotStore(),
		24*time.Hour,
		30,
		zap.NewNop(),
	)

	profile := user.Profile{UserID: "user-1", DisplayName: "Before", UpdatedAt: time.Now().UTC()}
	require.NoError(t, kv.Set(ctx, ports.KeyUserProfile, profile))

	staged, err := domainsync.NewQueueItem(
		domainsync.ChatMessage{Message: chat.Message{
			ID: "m1", Content: "hi", Sender: "user-1", Type: "text", CreatedAt: time.Now().UTC(),
		}},
		domainsync.ActionCreate,
		domainsync.PriorityNormal,
	)
	require.NoError(t, err)
	require.NoError(t, queue.Append(ctx, staged))

	require.NoError(t, m.Register(Migration{
		Version:     "2.0.0",
		Description: "moves the profile to the sensitive partition",
		Apply: func(ctx context.Context, kv ports.KVStore) error {
			var p user.Profile
			if kv.Get(ctx, ports.KeyUserProfile, &p) {
				if err := kv.SetSensitive(ctx, ports.KeyUserProfile, p); err != nil {
					return err
				}
				if err := kv.Delete(ctx, ports.KeyUserProfile); err != nil {
					return err
				}
			}
			return nil
		},
	}))
	require.NoError(t, m.Register(Migration{
		Version:     "2.1.0",
		Description: "fails after the move",
		Apply: func(ctx context.Context, kv ports.KVStore) error {
			return errors.New("midway failure")
		},
	}))

	err = m.Migrate(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsMigration(err))

	// The relocation is fully rolled back: the profile is back in the
	// general partition and the sensitive copy does not linger
	var restored user.Profile
	require.True(t, kv.Get(ctx, ports.KeyUserProfile, &restored))
	assert.Equal(t, "Before", restored.DisplayName)

	var lingering user.Profile
	assert.False(t, kv.GetSensitive(ctx, ports.KeyUserProfile, &lingering))

	// Queue contents survive the restore intact
	items, err := queue.All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, staged.ID, items[0].ID)
}
