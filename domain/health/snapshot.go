package health

import (
	"sort"
	"time"
)

// MetricSnapshot is a reduced summary for one metric over a collection window
type MetricSnapshot struct {
	Metric Metric     `json:"metric"`
	Kind   RollupKind `json:"kind"`
	Value  float64    `json:"value"`
	Count  int        `json:"count"`
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
}

// DailySummary is the date-keyed rollup row pushed to the remote store
// with upsert semantics keyed by (date, user).
type DailySummary struct {
	UserID           string    `json:"userId" validate:"required"`
	Date             string    `json:"date" validate:"required"` // YYYY-MM-DD
	Steps            float64   `json:"steps"`
	CaloriesConsumed float64   `json:"caloriesConsumed"`
	CaloriesBurned   float64   `json:"caloriesBurned"`
	AvgHeartRate     float64   `json:"avgHeartRate"`
	SleepDuration    float64   `json:"sleepDuration"`
	WaterIntake      float64   `json:"waterIntake"`
	ExerciseMinutes  float64   `json:"exerciseMinutes"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Summarize folds snapshots into the daily summary row for the given date
func Summarize(userID string, date time.Time, snapshots []MetricSnapshot) DailySummary {
	s := DailySummary{
		UserID:    userID,
		Date:      date.UTC().Format("2006-01-02"),
		UpdatedAt: time.Now().UTC(),
	}
	for _, snap := range snapshots {
		switch snap.Metric {
		case MetricSteps:
			s.Steps = snap.Value
		case MetricCaloriesConsumed:
			s.CaloriesConsumed = snap.Value
		case MetricCaloriesBurned:
			s.CaloriesBurned = snap.Value
		case MetricHeartRate:
			s.AvgHeartRate = snap.Value
		case MetricSleepDuration:
			s.SleepDuration = snap.Value
		case MetricWaterIntake:
			s.WaterIntake = snap.Value
		case MetricExerciseMinutes:
			s.ExerciseMinutes = snap.Value
		}
	}
	return s
}

// Aggregate reduces a resolved point set into one snapshot per rollup metric.
// Averages use the arithmetic mean, sums plain summation, latest the value
// with the newest timestamp. Points with unmapped metric tags are ignored.
func Aggregate(points []MeasurementPoint) []MetricSnapshot {
	type acc struct {
		sum    float64
		count  int
		latest MeasurementPoint
		start  time.Time
		end    time.Time
	}

	accs := make(map[Metric]*acc)
	for _, p := range points {
		if p.Metric.Rollup() == RollupNone {
			continue
		}
		a, ok := accs[p.Metric]
		if !ok {
			a = &acc{latest: p, start: p.Timestamp, end: p.Timestamp}
			accs[p.Metric] = a
		}
		a.sum += p.Value
		a.count++
		if p.Timestamp.After(a.latest.Timestamp) {
			a.latest = p
		}
		if p.Timestamp.Before(a.start) {
			a.start = p.Timestamp
		}
		if p.Timestamp.After(a.end) {
			a.end = p.Timestamp
		}
	}

	snapshots := make([]MetricSnapshot, 0, len(accs))
	for metric, a := range accs {
		snap := MetricSnapshot{
			Metric: metric,
			Kind:   metric.Rollup(),
			Count:  a.count,
			Start:  a.start,
			End:    a.end,
		}
		switch metric.Rollup() {
		case RollupAverage:
			snap.Value = a.sum / float64(a.count)
		case RollupSum:
			snap.Value = a.sum
		case RollupLatest:
			snap.Value = a.latest.Value
		}
		snapshots = append(snapshots, snap)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Metric < snapshots[j].Metric
	})
	return snapshots
}
