// Package health holds the measurement domain model: points, batches,
// rollup snapshots and daily summaries.
package health

import (
	"math"
	"time"

	"github.com/google/uuid"

	pkgerrors "healthsync/pkg/errors"
)

// Metric identifies a kind of health measurement
type Metric string

const (
	MetricHeartRate        Metric = "heart_rate"
	MetricSteps            Metric = "steps"
	MetricSleepDuration    Metric = "sleep_duration"
	MetricCaloriesConsumed Metric = "calories_consumed"
	MetricCaloriesBurned   Metric = "calories_burned"
	MetricWeight           Metric = "weight"
	MetricBloodGlucose     Metric = "blood_glucose"
	MetricWaterIntake      Metric = "water_intake"
	MetricExerciseMinutes  Metric = "exercise_minutes"
	MetricStressLevel      Metric = "stress_level"
	MetricMoodScore        Metric = "mood_score"
)

// RollupKind describes how raw points of a metric fold into a summary
type RollupKind int

const (
	RollupNone RollupKind = iota
	RollupAverage
	RollupSum
	RollupLatest
)

var metricRollups = map[Metric]RollupKind{
	MetricHeartRate:        RollupAverage,
	MetricStressLevel:      RollupAverage,
	MetricSteps:            RollupSum,
	MetricCaloriesConsumed: RollupSum,
	MetricCaloriesBurned:   RollupSum,
	MetricWaterIntake:      RollupSum,
	MetricExerciseMinutes:  RollupSum,
	MetricSleepDuration:    RollupLatest,
	MetricWeight:           RollupLatest,
	MetricBloodGlucose:     RollupLatest,
	MetricMoodScore:        RollupLatest,
}

// Rollup returns the rollup kind for the metric. Unknown metrics map to
// RollupNone and are skipped during aggregation, never errored.
func (m Metric) Rollup() RollupKind {
	return metricRollups[m]
}

// Valid reports whether the metric tag belongs to the known set
func (m Metric) Valid() bool {
	_, ok := metricRollups[m]
	return ok
}

// MeasurementPoint is one fact about the user at an instant.
// Points are immutable once created; a correction is a new point.
type MeasurementPoint struct {
	ID         string    `json:"id" validate:"required"`
	UserID     string    `json:"userId" validate:"required"`
	Metric     Metric    `json:"metric" validate:"required"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	Timestamp  time.Time `json:"timestamp" validate:"required"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence" validate:"gte=0,lte=1"`
}

// NewMeasurementPoint creates a validated point with a generated id
func NewMeasurementPoint(userID string, metric Metric, value float64, unit string, ts time.Time, source string, confidence float64) (MeasurementPoint, error) {
	if userID == "" {
		return MeasurementPoint{}, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if !metric.Valid() {
		return MeasurementPoint{}, pkgerrors.NewValidationError("unknown metric: " + string(metric))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MeasurementPoint{}, pkgerrors.NewValidationError("value must be a finite number")
	}
	if confidence < 0 || confidence > 1 {
		return MeasurementPoint{}, pkgerrors.NewValidationError("confidence must be within [0, 1]")
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return MeasurementPoint{
		ID:         uuid.NewString(),
		UserID:     userID,
		Metric:     metric,
		Value:      value,
		Unit:       unit,
		Timestamp:  ts.UTC(),
		Source:     source,
		Confidence: confidence,
	}, nil
}

// InRange reports whether the point's timestamp falls within [start, end]
func (p MeasurementPoint) InRange(start, end time.Time) bool {
	return !p.Timestamp.Before(start) && !p.Timestamp.After(end)
}
