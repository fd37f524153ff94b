package estimator

import (
	"fmt"
	"math"
)

// SleepQuality grades a night's sleep duration.
type SleepQuality string

const (
	SleepPoor    SleepQuality = "poor"
	SleepAverage SleepQuality = "average"
	SleepGood    SleepQuality = "good"
)

// SleepAssessment is the banded result of ClassifySleepQuality.
type SleepAssessment struct {
	Quality   SleepQuality `json:"quality"`
	Feedback  string       `json:"feedback"`
	ColorHint string       `json:"color_hint"`
}

// ClassifySleepQuality grades sleep hours:
// <4 poor, [4,6) poor, [6,7) average, [7,9] good, (9,10] average, >10 poor.
func ClassifySleepQuality(hours float64) (SleepAssessment, error) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return SleepAssessment{}, fmt.Errorf("%w: sleep hours must be >= 0, got %v", ErrInvalidInput, hours)
	}
	switch {
	case hours < 4:
		return SleepAssessment{SleepPoor, "Severely short sleep. Prioritise rest tonight.", "red"}, nil
	case hours < 6:
		return SleepAssessment{SleepPoor, "Below the recommended range. Try an earlier bedtime.", "red"}, nil
	case hours < 7:
		return SleepAssessment{SleepAverage, "Close to the target. Another hour would help recovery.", "orange"}, nil
	case hours <= 9:
		return SleepAssessment{SleepGood, "Within the recommended 7 to 9 hours.", "green"}, nil
	case hours <= 10:
		return SleepAssessment{SleepAverage, "Slightly more than needed.", "orange"}, nil
	default:
		return SleepAssessment{SleepPoor, "Oversleeping can signal poor sleep quality.", "red"}, nil
	}
}
