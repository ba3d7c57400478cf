// Package sync holds the durable outbox model: queue items, their typed
// payloads, and the aggregate sync status reported to the host.
package sync

import (
	"healthsync/domain/chat"
	"healthsync/domain/health"
	"healthsync/domain/user"
)

// EntityKind tags the closed set of syncable entities
type EntityKind string

const (
	KindHealthData          EntityKind = "health_data"
	KindDailySummary        EntityKind = "daily_summary"
	KindChatMessage         EntityKind = "conversation"
	KindConversationContext EntityKind = "conversation_context"
	KindUserProfile         EntityKind = "user_profile"
	KindUserSettings        EntityKind = "settings"
)

// Payload is the sealed set of queue item payloads. Each variant carries the
// typed record it propagates, so publisher dispatch is a compiler-checked
// type switch instead of a string-tag switch.
type Payload interface {
	Kind() EntityKind
	isPayload()
}

// HealthData carries a batch of measurement points. BatchID links back to
// the offline batch so it can be marked synced after a successful push.
type HealthData struct {
	BatchID string                    `json:"batchId,omitempty"`
	Points  []health.MeasurementPoint `json:"points"`
}

// DailySummary carries a date-keyed rollup row
type DailySummary struct {
	Summary health.DailySummary `json:"summary"`
}

// ChatMessage carries one conversation message
type ChatMessage struct {
	Message chat.Message `json:"message"`
}

// ConversationContext carries per-conversation rollup state
type ConversationContext struct {
	Context chat.Context `json:"context"`
}

// UserProfile carries the profile row
type UserProfile struct {
	Profile user.Profile `json:"profile"`
}

// UserSettings carries the settings row
type UserSettings struct {
	Settings user.Settings `json:"settings"`
}

func (HealthData) Kind() EntityKind          { return KindHealthData }
func (DailySummary) Kind() EntityKind        { return KindDailySummary }
func (ChatMessage) Kind() EntityKind         { return KindChatMessage }
func (ConversationContext) Kind() EntityKind { return KindConversationContext }
func (UserProfile) Kind() EntityKind         { return KindUserProfile }
func (UserSettings) Kind() EntityKind        { return KindUserSettings }

func (HealthData) isPayload()          {}
func (DailySummary) isPayload()        {}
func (ChatMessage) isPayload()         {}
func (ConversationContext) isPayload() {}
func (UserProfile) isPayload()         {}
func (UserSettings) isPayload()        {}
