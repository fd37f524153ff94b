// Package estimator converts raw step counts and body measurements into physical estimates.
package estimator

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidInput is returned when a numeric argument is outside the estimator's domain.
var ErrInvalidInput = errors.New("invalid input")

const (
	// StrideLengthM is the average adult stride length in metres.
	StrideLengthM = 0.762
	// WalkingMET is the metabolic equivalent used for step-based calorie estimates.
	WalkingMET = 3.5
	// WalkingSpeedKmh is the assumed walking speed used to derive time on feet.
	WalkingSpeedKmh = 5.0
	// DefaultBodyWeightKg is the fallback weight for interactive callers that lack a profile weight.
	DefaultBodyWeightKg = 70.0
	// MaxBodyWeightKg bounds accepted body weights.
	MaxBodyWeightKg = 1000.0
)

// ActivityClassification buckets a daily step count into an intensity level.
type ActivityClassification string

const (
	Sedentary      ActivityClassification = "sedentary"
	LowActive      ActivityClassification = "low_active"
	SomewhatActive ActivityClassification = "somewhat_active"
	Active         ActivityClassification = "active"
	HighlyActive   ActivityClassification = "highly_active"
)

// StepSummary bundles every step-derived estimate.
type StepSummary struct {
	Steps          int                    `json:"steps"`
	DistanceKm     float64                `json:"distance_km"`
	CaloriesBurned int                    `json:"calories_burned"`
	Classification ActivityClassification `json:"classification"`
}

// EstimateDistanceKm converts a step count into kilometres.
func EstimateDistanceKm(steps int) (float64, error) {
	if steps < 0 {
		return 0, fmt.Errorf("%w: step count must be >= 0, got %d", ErrInvalidInput, steps)
	}
	return float64(steps) * StrideLengthM / 1000, nil
}

// EstimateCaloriesBurned estimates walking calories for a step count at the given body weight.
func EstimateCaloriesBurned(steps int, weightKg float64) (int, error) {
	if err := validateWeight(weightKg); err != nil {
		return 0, err
	}
	distance, err := EstimateDistanceKm(steps)
	if err != nil {
		return 0, err
	}
	hours := distance / WalkingSpeedKmh
	return roundCalories(WalkingMET * weightKg * hours)
}

// ClassifyActivity maps a step count to an activity level. Lower bounds are inclusive.
func ClassifyActivity(steps int) (ActivityClassification, error) {
	switch {
	case steps < 0:
		return "", fmt.Errorf("%w: step count must be >= 0, got %d", ErrInvalidInput, steps)
	case steps < 5000:
		return Sedentary, nil
	case steps < 7500:
		return LowActive, nil
	case steps < 10000:
		return SomewhatActive, nil
	case steps < 12500:
		return Active, nil
	default:
		return HighlyActive, nil
	}
}

// Summarize computes distance, calories and classification in one pass.
func Summarize(steps int, weightKg float64) (StepSummary, error) {
	distance, err := EstimateDistanceKm(steps)
	if err != nil {
		return StepSummary{}, err
	}
	calories, err := EstimateCaloriesBurned(steps, weightKg)
	if err != nil {
		return StepSummary{}, err
	}
	class, err := ClassifyActivity(steps)
	if err != nil {
		return StepSummary{}, err
	}
	return StepSummary{
		Steps:          steps,
		DistanceKm:     distance,
		CaloriesBurned: calories,
		Classification: class,
	}, nil
}

// WeightOrDefault returns weightKg when it is usable, otherwise fallback.
func WeightOrDefault(weightKg, fallback float64) float64 {
	if validateWeight(weightKg) != nil {
		return fallback
	}
	return weightKg
}

// ValidateWeight reports ErrInvalidInput unless weightKg is in (0, MaxBodyWeightKg].
func ValidateWeight(weightKg float64) error {
	return validateWeight(weightKg)
}

func validateWeight(weightKg float64) error {
	if math.IsNaN(weightKg) || weightKg <= 0 || weightKg > MaxBodyWeightKg {
		return fmt.Errorf("%w: body weight must be in (0, %v] kg, got %v", ErrInvalidInput, MaxBodyWeightKg, weightKg)
	}
	return nil
}

// roundCalories rounds a non-negative kcal estimate, rejecting values an int cannot hold.
func roundCalories(kcal float64) (int, error) {
	rounded := math.Round(kcal)
	if math.IsNaN(rounded) || rounded < 0 || rounded >= float64(math.MaxInt) {
		return 0, fmt.Errorf("%w: calorie estimate out of range: %v", ErrInvalidInput, kcal)
	}
	return int(rounded), nil
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
