package estimator

import (
	"fmt"
	"math"
	"sort"
)

// MaxWorkoutMinutes bounds a single workout to one day.
const MaxWorkoutMinutes = 24 * 60

var workoutMETs = map[string]float64{
	"cardio":      6.0,
	"strength":    5.0,
	"yoga":        3.0,
	"pilates":     3.0,
	"sports":      6.5,
	"flexibility": 2.3,
}

// LookupMET returns the MET value for an exercise category.
func LookupMET(exerciseType string) (float64, bool) {
	met, ok := workoutMETs[normalizeKey(exerciseType)]
	return met, ok
}

// ExerciseTypes lists the supported exercise categories in sorted order.
func ExerciseTypes() []string {
	out := make([]string, 0, len(workoutMETs))
	for name := range workoutMETs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EstimateWorkoutCalories estimates calories for a workout of the given category and duration.
func EstimateWorkoutCalories(exerciseType string, durationMinutes, weightKg float64) (int, error) {
	met, ok := LookupMET(exerciseType)
	if !ok {
		return 0, fmt.Errorf("%w: unknown exercise type %q", ErrInvalidInput, exerciseType)
	}
	if math.IsNaN(durationMinutes) || durationMinutes < 0 || durationMinutes > MaxWorkoutMinutes {
		return 0, fmt.Errorf("%w: duration must be in [0, %d] minutes, got %v", ErrInvalidInput, MaxWorkoutMinutes, durationMinutes)
	}
	if err := validateWeight(weightKg); err != nil {
		return 0, err
	}
	return roundCalories(met * weightKg * durationMinutes / 60)
}
