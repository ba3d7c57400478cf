package memory

import (
	"context"
	"sync"
	"time"

	"healthsync/domain/chat"
	"healthsync/domain/health"
	"healthsync/domain/user"
	pkgerrors "healthsync/pkg/errors"
)

// RemoteStore is an in-memory ports.RemoteStore. It backs development runs
// without a configured backend and the publisher tests. Online and Fail are
// test hooks: flip Online to simulate connectivity loss, set Fail to make
// every mutation error.
type RemoteStore struct {
	mu       sync.Mutex
	online   bool
	fail     error
	points   map[string]health.MeasurementPoint
	summarys map[string]health.DailySummary
	messages map[string]chat.Message
	contexts map[string]chat.Context
	profiles map[string]user.Profile
	settings map[string]user.Settings
}

// NewRemoteStore creates an empty in-memory remote, initially online
func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		online:   true,
		points:   make(map[string]health.MeasurementPoint),
		summarys: make(map[string]health.DailySummary),
		messages: make(map[string]chat.Message),
		contexts: make(map[string]chat.Context),
		profiles: make(map[string]user.Profile),
		settings: make(map[string]user.Settings),
	}
}

// SetOnline toggles the simulated connectivity state
func (s *RemoteStore) SetOnline(online bool) {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
}

// SetFail makes every mutation return err; nil restores normal behavior
func (s *RemoteStore) SetFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// PointCount returns the number of stored points
func (s *RemoteStore) PointCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

// MessageCount returns the number of stored messages
func (s *RemoteStore) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *RemoteStore) check() error {
	if !s.online {
		return pkgerrors.NewUnavailableError("remote")
	}
	return s.fail
}

func (s *RemoteStore) Reachable(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *RemoteStore) InsertPoints(ctx context.Context, points []health.MeasurementPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	for _, p := range points {
		s.points[p.ID] = p
	}
	return nil
}

func (s *RemoteStore) UpdatePoint(ctx context.Context, point health.MeasurementPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.points[point.ID] = point
	return nil
}

func (s *RemoteStore) DeletePoint(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	delete(s.points, id)
	return nil
}

func (s *RemoteStore) UpsertDailySummary(ctx context.Context, summary health.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.summarys[summary.Date+"/"+summary.UserID] = summary
	return nil
}

func (s *RemoteStore) InsertMessage(ctx context.Context, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.messages[msg.ID] = msg
	return nil
}

func (s *RemoteStore) UpdateMessage(ctx context.Context, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.messages[msg.ID] = msg
	return nil
}

func (s *RemoteStore) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	delete(s.messages, id)
	return nil
}

func (s *RemoteStore) UpsertConversationContext(ctx context.Context, c chat.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.contexts[c.ConversationID] = c
	return nil
}

func (s *RemoteStore) UpsertProfile(ctx context.Context, p user.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.profiles[p.UserID] = p
	return nil
}

func (s *RemoteStore) DeleteProfile(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	delete(s.profiles, userID)
	return nil
}

func (s *RemoteStore) UpsertSettings(ctx context.Context, st user.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.settings[st.UserID] = st
	return nil
}

func (s *RemoteStore) DeleteSettings(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	delete(s.settings, userID)
	return nil
}

func (s *RemoteStore) RecentPoints(ctx context.Context, userID string, since time.Time) ([]health.MeasurementPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	var out []health.MeasurementPoint
	for _, p := range s.points {
		if p.UserID == userID && !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *RemoteStore) RecentMessages(ctx context.Context, userID string, since time.Time) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	var out []chat.Message
	for _, m := range s.messages {
		if m.Sender == userID && !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *RemoteStore) FetchProfile(ctx context.Context, userID string) (*user.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("profile for user " + userID)
	}
	return &p, nil
}
