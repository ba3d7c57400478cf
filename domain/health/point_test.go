package health

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMeasurementPoint(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("valid point gets a generated id", func(t *testing.T) {
		p, err := NewMeasurementPoint("user-1", MetricHeartRate, 72, "bpm", ts, "watch", 0.9)
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, MetricHeartRate, p.Metric)
		assert.Equal(t, ts, p.Timestamp)
	})

	t.Run("zero timestamp defaults to now", func(t *testing.T) {
		p, err := NewMeasurementPoint("user-1", MetricSteps, 100, "", time.Time{}, "watch", 1)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC(), p.Timestamp, time.Minute)
	})

	t.Run("rejections", func(t *testing.T) {
		cases := []struct {
			name       string
			userID     string
			metric     Metric
			value      float64
			confidence float64
		}{
			{"empty user", "", MetricSteps, 100, 0.5},
			{"unknown metric", "user-1", Metric("vibes"), 100, 0.5},
			{"NaN value", "user-1", MetricSteps, math.NaN(), 0.5},
			{"infinite value", "user-1", MetricSteps, math.Inf(1), 0.5},
			{"confidence below zero", "user-1", MetricSteps, 100, -0.1},
			{"confidence above one", "user-1", MetricSteps, 100, 1.1},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := NewMeasurementPoint(tc.userID, tc.metric, tc.value, "", ts, "watch", tc.confidence)
				assert.Error(t, err)
			})
		}
	})
}

func TestInRangeIsInclusive(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	p := MeasurementPoint{Timestamp: ts}

	assert.True(t, p.InRange(ts, ts))
	assert.True(t, p.InRange(ts.Add(-time.Hour), ts.Add(time.Hour)))
	assert.False(t, p.InRange(ts.Add(time.Second), ts.Add(time.Hour)))
	assert.False(t, p.InRange(ts.Add(-time.Hour), ts.Add(-time.Second)))
}

func TestOfflineBatch(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("empty batch rejected", func(t *testing.T) {
		_, err := NewOfflineBatch(nil, "watch")
		assert.Error(t, err)
	})

	t.Run("batch copies the point slice", func(t *testing.T) {
		points := []MeasurementPoint{testPoint(MetricSteps, 100, ts)}
		batch, err := NewOfflineBatch(points, "watch")
		require.NoError(t, err)

		points[0].Value = 999
		assert.Equal(t, 100.0, batch.Points[0].Value)
	})

	t.Run("synced flag is one way", func(t *testing.T) {
		batch, err := NewOfflineBatch([]MeasurementPoint{testPoint(MetricSteps, 100, ts)}, "watch")
		require.NoError(t, err)
		assert.False(t, batch.Synced)
		batch.MarkSynced()
		assert.True(t, batch.Synced)
	})
}
