package estimator

import (
	"fmt"
	"math"
)

// BMICategory is the WHO adult body-mass-index band.
type BMICategory string

const (
	Underweight BMICategory = "underweight"
	Normal      BMICategory = "normal"
	Overweight  BMICategory = "overweight"
	Obese       BMICategory = "obese"
)

// BMIAssessment holds a BMI value rounded to one decimal and its band.
type BMIAssessment struct {
	BMI      float64     `json:"bmi"`
	Category BMICategory `json:"category"`
}

// CalculateBMI computes body mass index from weight in kilograms and height in centimetres.
func CalculateBMI(weightKg, heightCm float64) (BMIAssessment, error) {
	if err := validateWeight(weightKg); err != nil {
		return BMIAssessment{}, err
	}
	if math.IsNaN(heightCm) || math.IsInf(heightCm, 0) || heightCm <= 0 {
		return BMIAssessment{}, fmt.Errorf("%w: height must be > 0, got %v", ErrInvalidInput, heightCm)
	}
	metres := heightCm / 100
	bmi := math.Round(weightKg/(metres*metres)*10) / 10
	if math.IsInf(bmi, 0) || math.IsNaN(bmi) {
		return BMIAssessment{}, fmt.Errorf("%w: height %v cm gives no finite BMI", ErrInvalidInput, heightCm)
	}

	category := Obese
	switch {
	case bmi < 18.5:
		category = Underweight
	case bmi < 25:
		category = Normal
	case bmi < 30:
		category = Overweight
	}
	return BMIAssessment{BMI: bmi, Category: category}, nil
}
