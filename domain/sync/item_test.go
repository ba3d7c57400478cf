package sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthsync/domain/chat"
	"healthsync/domain/health"
)

func TestQueueItemEnvelopeRoundTrip(t *testing.T) {
	item, err := NewQueueItem(
		HealthData{
			BatchID: "batch-1",
			Points: []health.MeasurementPoint{{
				ID:         "p1",
				UserID:     "user-1",
				Metric:     health.MetricSteps,
				Value:      500,
				Timestamp:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
				Source:     "watch",
				Confidence: 0.9,
			}},
		},
		ActionCreate,
		PriorityHigh,
	)
	require.NoError(t, err)

	raw, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"entityType":"health_data"`)

	var decoded QueueItem
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, item.ID, decoded.ID)
	assert.Equal(t, KindHealthData, decoded.Kind())

	payload, ok := decoded.Payload.(HealthData)
	require.True(t, ok)
	assert.Equal(t, "batch-1", payload.BatchID)
	require.Len(t, payload.Points, 1)
	assert.Equal(t, health.MetricSteps, payload.Points[0].Metric)
}

func TestQueueItemDecodeRejectsUnknownKind(t *testing.T) {
	var item QueueItem
	err := json.Unmarshal([]byte(`{"id":"x","entityType":"mystery","action":"create","priority":"low","payload":{}}`), &item)
	assert.Error(t, err)
}

func TestQueueItemChatRoundTrip(t *testing.T) {
	item, err := NewQueueItem(
		ChatMessage{Message: chat.Message{ID: "m1", Content: "hi", Sender: "user-1", Type: "text"}},
		ActionUpdate,
		PriorityNormal,
	)
	require.NoError(t, err)

	raw, err := json.Marshal(item)
	require.NoError(t, err)

	var decoded QueueItem
	require.NoError(t, json.Unmarshal(raw, &decoded))
	payload, ok := decoded.Payload.(ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "m1", payload.Message.ID)
	assert.Equal(t, ActionUpdate, decoded.Action)
}

func TestNewQueueItemValidation(t *testing.T) {
	_, err := NewQueueItem(nil, ActionCreate, PriorityNormal)
	assert.Error(t, err)

	_, err = NewQueueItem(ChatMessage{}, Action("explode"), PriorityNormal)
	assert.Error(t, err)

	_, err = NewQueueItem(ChatMessage{}, ActionCreate, Priority("urgent"))
	assert.Error(t, err)
}

func TestExhausted(t *testing.T) {
	item := QueueItem{RetryCount: MaxRetries - 1}
	assert.False(t, item.Exhausted())
	item.RetryCount++
	assert.True(t, item.Exhausted())
}

func TestPriorityRankOrdering(t *testing.T) {
	assert.Greater(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.Greater(t, PriorityNormal.Rank(), PriorityLow.Rank())
}
