package ports

import (
	"context"
	"time"

	"healthsync/domain/health"
	domainsync "healthsync/domain/sync"
)

// Well-known keys in the general key-value partition. The sensitive
// partition holds the profile and tokens under their own keys.
const (
	KeyHealthDataPoints     = "health_data_points"
	KeyChatMessages         = "chat_messages"
	KeyConversationContexts = "conversation_contexts"
	KeyDailySummaries       = "daily_summaries"
	KeyUserSettings         = "user_settings"
	KeySyncStatus           = "sync_status"
	KeyStorageVersion       = "storage_version"
	KeyMigrationStatus      = "migration_status"
	KeyLastCleanup          = "last_cleanup"

	KeyUserProfile = "user_profile" // sensitive partition
	KeyAuthTokens  = "auth_tokens"  // sensitive partition
)

// KVStore is the durable key-value surface with a general and a sensitive
// partition. Writes are fail-loud: they return a typed storage error carrying
// the operation and key. Reads are fail-soft: a failed or missing read yields
// found == false and is logged by the implementation, never propagated.
type KVStore interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)

	GetSensitive(ctx context.Context, key string, dest any) bool
	SetSensitive(ctx context.Context, key string, value any) error
	DeleteSensitive(ctx context.Context, key string) error
	KeysSensitive(ctx context.Context) ([]string, error)
}

// QueueStore persists the sync outbox partition
type QueueStore interface {
	Append(ctx context.Context, item domainsync.QueueItem) error

	// All returns items in enqueue order, the stable base for priority
	// sorting. Undecodable rows are skipped and logged.
	All(ctx context.Context) ([]domainsync.QueueItem, error)

	// Update rewrites an existing item, used for retry accounting
	Update(ctx context.Context, item domainsync.QueueItem) error

	Remove(ctx context.Context, id string) error

	// PruneExhausted deletes items enqueued before the cutoff whose retry
	// count has reached the ceiling. Returns the number removed.
	PruneExhausted(ctx context.Context, cutoff time.Time, ceiling int) (int, error)

	Count(ctx context.Context) (int, error)
}

// Footprint is the approximate storage cost of a partition
type Footprint struct {
	Bytes   int64 `json:"bytes"`
	Batches int   `json:"batches"`
	Points  int   `json:"points"`
}

// BatchStore persists the offline point buffer partition
type BatchStore interface {
	Append(ctx context.Context, batch health.OfflineBatch) error

	// All returns decodable batches in capture order; corrupt rows are
	// skipped and logged, never propagated.
	All(ctx context.Context) ([]health.OfflineBatch, error)

	MarkSynced(ctx context.Context, id string) error

	// DeleteSyncedOlderThan removes batches captured before the cutoff
	// whose synced flag is set. Unsynced batches are never deleted.
	DeleteSyncedOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	Footprint(ctx context.Context) (Footprint, error)
}

// Snapshot is a timestamped full copy of the locally stored domain data,
// taken before migrations and restored on failure. Both key-value
// partitions and the sync queue are captured; the offline batch buffer is
// append-only and untouched by migrations.
type Snapshot struct {
	Name      string                 `json:"name"`
	CreatedAt time.Time              `json:"createdAt"`
	Data      map[string][]byte      `json:"data"`
	Sensitive map[string][]byte      `json:"sensitive,omitempty"`
	Queue     []domainsync.QueueItem `json:"queue,omitempty"`
}

// SnapshotStore persists backup snapshots keyed by generated name
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, name string) (Snapshot, error)

	// List returns snapshot names, newest first
	List(ctx context.Context) ([]string, error)

	Delete(ctx context.Context, name string) error
}
