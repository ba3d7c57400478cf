// Package supabase implements the remote row store over Supabase's
// PostgREST API. All calls run through a circuit breaker so a flapping
// backend degrades to the offline path instead of hammering the network.
package supabase

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"healthsync/domain/chat"
	"healthsync/domain/health"
	"healthsync/domain/user"
	pkgerrors "healthsync/pkg/errors"
)

// Table names in the remote schema
const (
	tablePoints    = "health_data_points"
	tableSummaries = "daily_health_summaries"
	tableMessages  = "chat_messages"
	tableContexts  = "conversation_contexts"
	tableProfiles  = "user_profiles"
	tableSettings  = "user_settings"
)

// Config for the remote store
type Config struct {
	URL string
	Key string

	// BreakerTimeout is how long the breaker stays open after tripping
	BreakerTimeout time.Duration
}

// Store implements ports.RemoteStore
type Store struct {
	client  *supabase.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New creates the remote store and its circuit breaker
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.Key, &supabase.ClientOptions{})
	if err != nil {
		return nil, pkgerrors.NewRemoteError("connect", err)
	}

	timeout := cfg.BreakerTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "supabase",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("remote circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Store{client: client, breaker: breaker, logger: logger}, nil
}

// execute runs one remote call through the breaker
func (s *Store) execute(ctx context.Context, op string, call func() error) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewRemoteError(op, err)
	}
	if _, err := s.breaker.Execute(func() (any, error) {
		return nil, call()
	}); err != nil {
		return pkgerrors.NewRemoteError(op, err)
	}
	return nil
}

// Reachable probes the backend with a head-only select. False covers both a
// down backend and an open breaker.
func (s *Store) Reachable(ctx context.Context) bool {
	err := s.execute(ctx, "probe", func() error {
		_, _, err := s.client.From(tableProfiles).
			Select("user_id", "exact", true).
			Limit(1, "").
			Execute()
		return err
	})
	return err == nil
}

// pointRow is the remote shape of a measurement point
type pointRow struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
}

func toPointRow(p health.MeasurementPoint) pointRow {
	return pointRow{
		ID:         p.ID,
		UserID:     p.UserID,
		Metric:     string(p.Metric),
		Value:      p.Value,
		Unit:       p.Unit,
		Timestamp:  p.Timestamp,
		Source:     p.Source,
		Confidence: p.Confidence,
	}
}

func fromPointRow(r pointRow) health.MeasurementPoint {
	return health.MeasurementPoint{
		ID:         r.ID,
		UserID:     r.UserID,
		Metric:     health.Metric(r.Metric),
		Value:      r.Value,
		Unit:       r.Unit,
		Timestamp:  r.Timestamp,
		Source:     r.Source,
		Confidence: r.Confidence,
	}
}

// InsertPoints pushes a batch of points in one request
func (s *Store) InsertPoints(ctx context.Context, points []health.MeasurementPoint) error {
	rows := make([]pointRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, toPointRow(p))
	}
	return s.execute(ctx, "insert_points", func() error {
		// Upsert on id so a replayed batch is idempotent
		_, _, err := s.client.From(tablePoints).
			Insert(rows, true, "id", "", "").
			Execute()
		return err
	})
}

// UpdatePoint rewrites one point row
func (s *Store) UpdatePoint(ctx context.Context, point health.MeasurementPoint) error {
	return s.execute(ctx, "update_point", func() error {
		_, _, err := s.client.From(tablePoints).
			Update(toPointRow(point), "", "").
			Eq("id", point.ID).
			Execute()
		return err
	})
}

// DeletePoint removes one point row by id
func (s *Store) DeletePoint(ctx context.Context, id string) error {
	return s.execute(ctx, "delete_point", func() error {
		_, _, err := s.client.From(tablePoints).
			Delete("", "").
			Eq("id", id).
			Execute()
		return err
	})
}

// summaryRow is the remote shape of a daily summary
type summaryRow struct {
	UserID           string    `json:"user_id"`
	Date             string    `json:"date"`
	Steps            float64   `json:"steps"`
	CaloriesConsumed float64   `json:"calories_consumed"`
	CaloriesBurned   float64   `json:"calories_burned"`
	AvgHeartRate     float64   `json:"avg_heart_rate"`
	SleepDuration    float64   `json:"sleep_duration"`
	WaterIntake      float64   `json:"water_intake"`
	ExerciseMinutes  float64   `json:"exercise_minutes"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UpsertDailySummary writes the summary row keyed by (date, user)
func (s *Store) UpsertDailySummary(ctx context.Context, summary health.DailySummary) error {
	row := summaryRow{
		UserID:           summary.UserID,
		Date:             summary.Date,
		Steps:            summary.Steps,
		CaloriesConsumed: summary.CaloriesConsumed,
		CaloriesBurned:   summary.CaloriesBurned,
		AvgHeartRate:     summary.AvgHeartRate,
		SleepDuration:    summary.SleepDuration,
		WaterIntake:      summary.WaterIntake,
		ExerciseMinutes:  summary.ExerciseMinutes,
		UpdatedAt:        summary.UpdatedAt,
	}
	return s.execute(ctx, "upsert_summary", func() error {
		_, _, err := s.client.From(tableSummaries).
			Insert(row, true, "date,user_id", "", "").
			Execute()
		return err
	})
}

// messageRow is the remote shape of a chat message
type messageRow struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	Sender         string    `json:"sender"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}

func toMessageRow(m chat.Message) messageRow {
	return messageRow{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		Sender:         m.Sender,
		Type:           m.Type,
		CreatedAt:      m.CreatedAt,
	}
}

func fromMessageRow(r messageRow) chat.Message {
	return chat.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Content:        r.Content,
		Sender:         r.Sender,
		Type:           r.Type,
		CreatedAt:      r.CreatedAt,
	}
}

// InsertMessage pushes one chat message
func (s *Store) InsertMessage(ctx context.Context, msg chat.Message) error {
	return s.execute(ctx, "insert_message", func() error {
		_, _, err := s.client.From(tableMessages).
			Insert(toMessageRow(msg), true, "id", "", "").
			Execute()
		return err
	})
}

// UpdateMessage rewrites one chat message row
func (s *Store) UpdateMessage(ctx context.Context, msg chat.Message) error {
	return s.execute(ctx, "update_message", func() error {
		_, _, err := s.client.From(tableMessages).
			Update(toMessageRow(msg), "", "").
			Eq("id", msg.ID).
			Execute()
		return err
	})
}

// DeleteMessage removes one chat message row by id
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	return s.execute(ctx, "delete_message", func() error {
		_, _, err := s.client.From(tableMessages).
			Delete("", "").
			Eq("id", id).
			Execute()
		return err
	})
}

// contextRow is the remote shape of a conversation context
type contextRow struct {
	ConversationID string            `json:"conversation_id"`
	Summary        string            `json:"summary"`
	Topics         []string          `json:"topics"`
	Attributes     map[string]string `json:"attributes"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// UpsertConversationContext writes the context keyed by conversation id
func (s *Store) UpsertConversationContext(ctx context.Context, c chat.Context) error {
	row := contextRow{
		ConversationID: c.ConversationID,
		Summary:        c.Summary,
		Topics:         c.Topics,
		Attributes:     c.Attributes,
		UpdatedAt:      c.UpdatedAt,
	}
	return s.execute(ctx, "upsert_context", func() error {
		_, _, err := s.client.From(tableContexts).
			Insert(row, true, "conversation_id", "", "").
			Execute()
		return err
	})
}

// profileRow is the remote shape of a user profile
type profileRow struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	BirthYear   int       `json:"birth_year"`
	HeightCM    *float64  `json:"height_cm"`
	WeightKG    *float64  `json:"weight_kg"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertProfile writes the profile row keyed by user
func (s *Store) UpsertProfile(ctx context.Context, p user.Profile) error {
	row := profileRow{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		BirthYear:   p.BirthYear,
		HeightCM:    p.HeightCM,
		WeightKG:    p.WeightKG,
		UpdatedAt:   p.UpdatedAt,
	}
	return s.execute(ctx, "upsert_profile", func() error {
		_, _, err := s.client.From(tableProfiles).
			Insert(row, true, "user_id", "", "").
			Execute()
		return err
	})
}

// DeleteProfile removes the profile row for a user
func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	return s.execute(ctx, "delete_profile", func() error {
		_, _, err := s.client.From(tableProfiles).
			Delete("", "").
			Eq("user_id", userID).
			Execute()
		return err
	})
}

// settingsRow is the remote shape of user settings
type settingsRow struct {
	UserID        string            `json:"user_id"`
	Units         string            `json:"units"`
	Notifications bool              `json:"notifications"`
	Preferences   map[string]string `json:"preferences"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// UpsertSettings writes the settings row keyed by user
func (s *Store) UpsertSettings(ctx context.Context, st user.Settings) error {
	row := settingsRow{
		UserID:        st.UserID,
		Units:         st.Units,
		Notifications: st.Notifications,
		Preferences:   st.Preferences,
		UpdatedAt:     st.UpdatedAt,
	}
	return s.execute(ctx, "upsert_settings", func() error {
		_, _, err := s.client.From(tableSettings).
			Insert(row, true, "user_id", "", "").
			Execute()
		return err
	})
}

// DeleteSettings removes the settings row for a user
func (s *Store) DeleteSettings(ctx context.Context, userID string) error {
	return s.execute(ctx, "delete_settings", func() error {
		_, _, err := s.client.From(tableSettings).
			Delete("", "").
			Eq("user_id", userID).
			Execute()
		return err
	})
}

// RecentPoints fetches the user's points measured after the cutoff
func (s *Store) RecentPoints(ctx context.Context, userID string, since time.Time) ([]health.MeasurementPoint, error) {
	var rows []pointRow
	err := s.execute(ctx, "recent_points", func() error {
		_, err := s.client.From(tablePoints).
			Select("*", "", false).
			Eq("user_id", userID).
			Gte("timestamp", since.UTC().Format(time.RFC3339)).
			Order("timestamp", &postgrest.OrderOpts{Ascending: true}).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	points := make([]health.MeasurementPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, fromPointRow(row))
	}
	return points, nil
}

// RecentMessages fetches the user's messages created after the cutoff
func (s *Store) RecentMessages(ctx context.Context, userID string, since time.Time) ([]chat.Message, error) {
	var rows []messageRow
	err := s.execute(ctx, "recent_messages", func() error {
		_, err := s.client.From(tableMessages).
			Select("*", "", false).
			Eq("sender", userID).
			Gte("created_at", since.UTC().Format(time.RFC3339)).
			Order("created_at", &postgrest.OrderOpts{Ascending: true}).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, fromMessageRow(row))
	}
	return messages, nil
}

// FetchProfile fetches the user's profile, nil when none exists
func (s *Store) FetchProfile(ctx context.Context, userID string) (*user.Profile, error) {
	var rows []profileRow
	err := s.execute(ctx, "fetch_profile", func() error {
		_, err := s.client.From(tableProfiles).
			Select("*", "", false).
			Eq("user_id", userID).
			Limit(1, "").
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.NewNotFoundError("profile for user " + userID)
	}
	row := rows[0]
	return &user.Profile{
		UserID:      row.UserID,
		DisplayName: row.DisplayName,
		BirthYear:   row.BirthYear,
		HeightCM:    row.HeightCM,
		WeightKG:    row.WeightKG,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}
