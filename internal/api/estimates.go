package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"example.com/wellnest/internal/estimator"
)

// EstimateStepsRequest is the payload for POST /v1/estimates/steps.
type EstimateStepsRequest struct {
	Steps    int      `json:"steps"`
	WeightKg *float64 `json:"weight_kg,omitempty"`
}

// EstimateWorkoutRequest is the payload for POST /v1/estimates/workout.
type EstimateWorkoutRequest struct {
	ExerciseType string   `json:"exercise_type"`
	DurationMin  float64  `json:"duration_min"`
	WeightKg     *float64 `json:"weight_kg,omitempty"`
}

// WorkoutEstimate describes the response body for workout estimates.
type WorkoutEstimate struct {
	ExerciseType   string  `json:"exercise_type"`
	DurationMin    float64 `json:"duration_min"`
	MET            float64 `json:"met"`
	WeightKg       float64 `json:"weight_kg"`
	CaloriesBurned int     `json:"calories_burned"`
}

// weight returns the caller's weight when given, otherwise the service default. An explicit
// non-positive weight is passed through so the estimator rejects it.
func (h *Handler) weight(w *float64) float64 {
	if w == nil {
		return h.steps.DefaultWeight()
	}
	return *w
}

func (h *Handler) estimateSteps(w http.ResponseWriter, r *http.Request) {
	var req EstimateStepsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	summary, err := estimator.Summarize(req.Steps, h.weight(req.WeightKg))
	if err != nil {
		writeEstimatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) estimateWorkout(w http.ResponseWriter, r *http.Request) {
	var req EstimateWorkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	weight := h.weight(req.WeightKg)
	calories, err := estimator.EstimateWorkoutCalories(req.ExerciseType, req.DurationMin, weight)
	if err != nil {
		writeEstimatorError(w, err)
		return
	}
	met, _ := estimator.LookupMET(req.ExerciseType)
	writeJSON(w, http.StatusOK, WorkoutEstimate{
		ExerciseType:   strings.ToLower(strings.TrimSpace(req.ExerciseType)),
		DurationMin:    req.DurationMin,
		MET:            met,
		WeightKg:       weight,
		CaloriesBurned: calories,
	})
}

func (h *Handler) workoutTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"exercise_types": estimator.ExerciseTypes()})
}

func (h *Handler) estimateSleep(w http.ResponseWriter, r *http.Request) {
	hours, err := queryFloat(r, "hours")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	assessment, err := estimator.ClassifySleepQuality(hours)
	if err != nil {
		writeEstimatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (h *Handler) estimateBMI(w http.ResponseWriter, r *http.Request) {
	weight, err := queryFloat(r, "weight_kg")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	height, err := queryFloat(r, "height_cm")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	assessment, err := estimator.CalculateBMI(weight, height)
	if err != nil {
		writeEstimatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func queryFloat(r *http.Request, key string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return value, nil
}
