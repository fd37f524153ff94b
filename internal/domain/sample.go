package domain

import (
	"time"

	"github.com/google/uuid"

	"example.com/wellnest/internal/estimator"
)

// SampleKind identifies which logging action produced a StepSample.
type SampleKind string

const (
	SampleKindManual     SampleKind = "manual"
	SampleKindCheckpoint SampleKind = "checkpoint"
	SampleKindFinal      SampleKind = "final"
)

// StepSample is one logged step count with its derived estimates.
// Distance and calories are only ever set by NewStepSample, from Count and WeightKg.
type StepSample struct {
	ID             string
	Kind           SampleKind
	Count          int
	WeightKg       float64
	DistanceKm     float64
	CaloriesBurned int
	Notes          string
	RecordedAt     time.Time
}

// Owner identifies whose samples are being recorded and the bearer token forwarded to the backend.
type Owner struct {
	UserID string
	Token  string
}

// NewStepSample derives distance and calories from count and body weight.
func NewStepSample(kind SampleKind, count int, weightKg float64, notes string, at time.Time) (StepSample, error) {
	distance, err := estimator.EstimateDistanceKm(count)
	if err != nil {
		return StepSample{}, err
	}
	calories, err := estimator.EstimateCaloriesBurned(count, weightKg)
	if err != nil {
		return StepSample{}, err
	}
	return StepSample{
		ID:             uuid.NewString(),
		Kind:           kind,
		Count:          count,
		WeightKg:       weightKg,
		DistanceKm:     distance,
		CaloriesBurned: calories,
		Notes:          notes,
		RecordedAt:     at.UTC(),
	}, nil
}
