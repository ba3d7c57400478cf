package ports

import (
	"context"
	"time"

	"healthsync/domain/chat"
	"healthsync/domain/health"
	"healthsync/domain/user"
)

// RemoteStore is the row-oriented remote backend. Every call is scoped to the
// authenticated user server-side; implementations attach the identity.
type RemoteStore interface {
	// Reachable is the liveness probe run before a drain. False is an
	// expected state, not an error.
	Reachable(ctx context.Context) bool

	// health_data_points
	InsertPoints(ctx context.Context, points []health.MeasurementPoint) error
	UpdatePoint(ctx context.Context, point health.MeasurementPoint) error
	DeletePoint(ctx context.Context, id string) error

	// daily_health_summaries, upsert keyed by (date, user)
	UpsertDailySummary(ctx context.Context, summary health.DailySummary) error

	// chat_messages
	InsertMessage(ctx context.Context, msg chat.Message) error
	UpdateMessage(ctx context.Context, msg chat.Message) error
	DeleteMessage(ctx context.Context, id string) error

	// conversation_contexts, upsert keyed by conversation id
	UpsertConversationContext(ctx context.Context, c chat.Context) error

	// user_profiles / user_settings, upsert by user; delete-by-user
	UpsertProfile(ctx context.Context, p user.Profile) error
	DeleteProfile(ctx context.Context, userID string) error
	UpsertSettings(ctx context.Context, s user.Settings) error
	DeleteSettings(ctx context.Context, userID string) error

	// Download queries for reconciling remote-origin rows into local storage
	RecentPoints(ctx context.Context, userID string, since time.Time) ([]health.MeasurementPoint, error)
	RecentMessages(ctx context.Context, userID string, since time.Time) ([]chat.Message, error)
	FetchProfile(ctx context.Context, userID string) (*user.Profile, error)
}

// Identity supplies the active user. Absence is a per-item sync failure,
// never a fatal engine error.
type Identity interface {
	CurrentUserID() (string, bool)
}

// IdentityFunc adapts a function to the Identity interface
type IdentityFunc func() (string, bool)

// CurrentUserID implements Identity
func (f IdentityFunc) CurrentUserID() (string, bool) { return f() }

// StaticIdentity returns an Identity fixed to one user id
func StaticIdentity(userID string) Identity {
	return IdentityFunc(func() (string, bool) {
		return userID, userID != ""
	})
}
