// Package chat holds the conversation records the engine stores and syncs.
// Chat presentation itself lives in the host application; the engine only
// guarantees durable, deduplicated transport for these rows.
package chat

import "time"

// Message is one stored conversation message
type Message struct {
	ID             string    `json:"id" validate:"required"`
	ConversationID string    `json:"conversationId"`
	Content        string    `json:"content" validate:"required"`
	Sender         string    `json:"sender" validate:"required"`
	Type           string    `json:"type" validate:"required"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Context is the per-conversation rollup state, upserted by conversation id
type Context struct {
	ConversationID string            `json:"conversationId" validate:"required"`
	Summary        string            `json:"summary"`
	Topics         []string          `json:"topics,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}
