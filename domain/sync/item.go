package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "healthsync/pkg/errors"
)

// MaxRetries is the fixed retry ceiling. An item that fails this many times
// is dropped with a warning, never retried forever.
const MaxRetries = 3

// Priority orders queue processing: high before normal before low
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Rank returns the sort rank; higher ranks drain first
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Action is the remote mutation an item carries
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// QueueItem is a durable unit of pending remote work. RetryCount only
// increases; the item is removed once it succeeds or breaches MaxRetries.
type QueueItem struct {
	ID         string    `json:"id" validate:"required"`
	Action     Action    `json:"action" validate:"required"`
	Priority   Priority  `json:"priority" validate:"required"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	RetryCount int       `json:"retryCount" validate:"gte=0"`
	Payload    Payload   `json:"-"`
}

// NewQueueItem creates a pending item around the given payload
func NewQueueItem(payload Payload, action Action, priority Priority) (QueueItem, error) {
	if payload == nil {
		return QueueItem{}, pkgerrors.NewValidationError("queue item payload cannot be nil")
	}
	switch action {
	case ActionCreate, ActionUpdate, ActionDelete:
	default:
		return QueueItem{}, pkgerrors.NewValidationError("unknown queue action: " + string(action))
	}
	switch priority {
	case PriorityLow, PriorityNormal, PriorityHigh:
	default:
		return QueueItem{}, pkgerrors.NewValidationError("unknown queue priority: " + string(priority))
	}

	return QueueItem{
		ID:         uuid.NewString(),
		Action:     action,
		Priority:   priority,
		EnqueuedAt: time.Now().UTC(),
		RetryCount: 0,
		Payload:    payload,
	}, nil
}

// Kind returns the entity tag derived from the payload variant
func (i QueueItem) Kind() EntityKind {
	if i.Payload == nil {
		return ""
	}
	return i.Payload.Kind()
}

// Exhausted reports whether the item has reached the retry ceiling
func (i QueueItem) Exhausted() bool {
	return i.RetryCount >= MaxRetries
}

// itemEnvelope is the persisted wire shape; the kind tag selects the
// payload variant on decode.
type itemEnvelope struct {
	ID         string          `json:"id"`
	Kind       EntityKind      `json:"entityType"`
	Action     Action          `json:"action"`
	Priority   Priority        `json:"priority"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	RetryCount int             `json:"retryCount"`
	Payload    json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the item with its kind tag and typed payload
func (i QueueItem) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(i.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode queue payload: %w", err)
	}
	return json.Marshal(itemEnvelope{
		ID:         i.ID,
		Kind:       i.Kind(),
		Action:     i.Action,
		Priority:   i.Priority,
		EnqueuedAt: i.EnqueuedAt,
		RetryCount: i.RetryCount,
		Payload:    raw,
	})
}

// UnmarshalJSON decodes the envelope and rehydrates the payload variant
func (i *QueueItem) UnmarshalJSON(data []byte) error {
	var env itemEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	var payload Payload
	switch env.Kind {
	case KindHealthData:
		var p HealthData
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode health_data payload: %w", err)
		}
		payload = p
	case KindDailySummary:
		var p DailySummary
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode daily_summary payload: %w", err)
		}
		payload = p
	case KindChatMessage:
		var p ChatMessage
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode conversation payload: %w", err)
		}
		payload = p
	case KindConversationContext:
		var p ConversationContext
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode conversation_context payload: %w", err)
		}
		payload = p
	case KindUserProfile:
		var p UserProfile
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode user_profile payload: %w", err)
		}
		payload = p
	case KindUserSettings:
		var p UserSettings
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode settings payload: %w", err)
		}
		payload = p
	default:
		return fmt.Errorf("unknown queue entity kind %q", env.Kind)
	}

	i.ID = env.ID
	i.Action = env.Action
	i.Priority = env.Priority
	i.EnqueuedAt = env.EnqueuedAt
	i.RetryCount = env.RetryCount
	i.Payload = payload
	return nil
}
