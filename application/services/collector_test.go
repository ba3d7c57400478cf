package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/domain/health"
)

type fakeAdapter struct {
	name      string
	available bool
	points    []health.MeasurementPoint
	err       error
}

func (f *fakeAdapter) Name() string                                  { return f.name }
func (f *fakeAdapter) Available(ctx context.Context) bool            { return f.available }
func (f *fakeAdapter) RequestPermissions(ctx context.Context) (bool, error) { return true, nil }

func (f *fakeAdapter) Readings(ctx context.Context, start, end time.Time) ([]health.MeasurementPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.points, nil
}

func (f *fakeAdapter) Subscribe(handler ports.PointHandler) (ports.Subscription, error) {
	return nil, nil
}

func point(metric health.Metric, value float64, ts time.Time, source string, confidence float64) health.MeasurementPoint {
	return health.MeasurementPoint{
		ID:         source + "-" + string(metric) + "-" + ts.Format(time.RFC3339),
		UserID:     "user-1",
		Metric:     metric,
		Value:      value,
		Timestamp:  ts,
		Source:     source,
		Confidence: confidence,
	}
}

func TestResolveConflicts(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("higher confidence wins within bucket", func(t *testing.T) {
		resolved := ResolveConflicts([]health.MeasurementPoint{
			point(health.MetricHeartRate, 70, base, "watch", 0.9),
			point(health.MetricHeartRate, 75, base.Add(time.Minute), "phone", 0.5),
		})
		require.Len(t, resolved, 1)
		assert.Equal(t, "watch", resolved[0].Source)
		assert.Equal(t, 70.0, resolved[0].Value)
	})

	t.Run("equal confidence falls back to later timestamp", func(t *testing.T) {
		resolved := ResolveConflicts([]health.MeasurementPoint{
			point(health.MetricHeartRate, 70, base, "watch", 0.8),
			point(health.MetricHeartRate, 75, base.Add(2*time.Minute), "phone", 0.8),
		})
		require.Len(t, resolved, 1)
		assert.Equal(t, "phone", resolved[0].Source)
	})

	t.Run("full tie keeps the first seen point", func(t *testing.T) {
		first := point(health.MetricSteps, 100, base, "watch", 0.8)
		second := point(health.MetricSteps, 200, base, "phone", 0.8)
		resolved := ResolveConflicts([]health.MeasurementPoint{first, second})
		require.Len(t, resolved, 1)
		assert.Equal(t, "watch", resolved[0].Source)
	})

	t.Run("different metrics never conflict", func(t *testing.T) {
		resolved := ResolveConflicts([]health.MeasurementPoint{
			point(health.MetricHeartRate, 70, base, "watch", 0.8),
			point(health.MetricSteps, 900, base, "watch", 0.8),
		})
		assert.Len(t, resolved, 2)
	})

	t.Run("points in different buckets both survive", func(t *testing.T) {
		resolved := ResolveConflicts([]health.MeasurementPoint{
			point(health.MetricHeartRate, 70, base, "watch", 0.8),
			point(health.MetricHeartRate, 80, base.Add(10*time.Minute), "watch", 0.8),
		})
		assert.Len(t, resolved, 2)
	})

	t.Run("idempotent on already resolved input", func(t *testing.T) {
		input := []health.MeasurementPoint{
			point(health.MetricHeartRate, 70, base, "watch", 0.9),
			point(health.MetricHeartRate, 75, base.Add(time.Minute), "phone", 0.5),
			point(health.MetricSteps, 900, base, "watch", 0.8),
		}
		once := ResolveConflicts(input)
		twice := ResolveConflicts(once)
		assert.Equal(t, once, twice)
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Nil(t, ResolveConflicts(nil))
	})
}

func TestCollectorSkipsBrokenSources(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	collector := NewCollector(zap.NewNop())

	collector.Register(&fakeAdapter{
		name:      "healthy",
		available: true,
		points:    []health.MeasurementPoint{point(health.MetricSteps, 500, base, "healthy", 0.9)},
	})
	collector.Register(&fakeAdapter{
		name:      "failing",
		available: true,
		err:       errors.New("bluetooth timeout"),
	})
	collector.Register(&fakeAdapter{
		name:      "offline",
		available: false,
		points:    []health.MeasurementPoint{point(health.MetricSteps, 999, base, "offline", 1.0)},
	})

	resolved := collector.Collect(context.Background(), base.Add(-time.Hour), base.Add(time.Hour))
	require.Len(t, resolved, 1)
	assert.Equal(t, "healthy", resolved[0].Source)
}

func TestCollectorSources(t *testing.T) {
	collector := NewCollector(zap.NewNop())
	collector.Register(&fakeAdapter{name: "a"})
	collector.Register(&fakeAdapter{name: "b"})
	assert.Equal(t, []string{"a", "b"}, collector.Sources())
}
