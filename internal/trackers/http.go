// Package trackers forwards step samples to the persistence backend.
package trackers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"example.com/wellnest/internal/domain"
)

// StepsPath is the backend endpoint that accepts step logs.
const StepsPath = "/trackers/steps"

// Payload is the body of POST /trackers/steps.
type Payload struct {
	Count          int     `json:"count"`
	Distance       float64 `json:"distance"`
	CaloriesBurned int     `json:"caloriesBurned"`
	Notes          string  `json:"notes"`
}

// PayloadFromSample maps a sample onto the backend contract.
func PayloadFromSample(sample domain.StepSample) Payload {
	return Payload{
		Count:          sample.Count,
		Distance:       sample.DistanceKm,
		CaloriesBurned: sample.CaloriesBurned,
		Notes:          sample.Notes,
	}
}

// HTTPRecorder posts samples to the backend tracker API.
type HTTPRecorder struct {
	client  *http.Client
	baseURL string
}

// NewHTTPRecorder constructs an HTTPRecorder.
func NewHTTPRecorder(baseURL string, timeout time.Duration) *HTTPRecorder {
	return &HTTPRecorder{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Record implements domain.Recorder. It does not retry.
func (r *HTTPRecorder) Record(ctx context.Context, owner domain.Owner, sample domain.StepSample) (err error) {
	start := time.Now()
	defer func() { recordSave("http", sample, start, err) }()

	body, err := json.Marshal(PayloadFromSample(sample))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+StepsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if owner.Token != "" {
		req.Header.Set("Authorization", "Bearer "+owner.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &PersistenceError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// PersistenceError represents a non-successful backend response.
type PersistenceError struct {
	Status int
	Body   string
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("step save failed with status %d %s", e.Status, http.StatusText(e.Status))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap lets errors.Is match domain.ErrPersistenceFailure.
func (e *PersistenceError) Unwrap() error {
	return domain.ErrPersistenceFailure
}
