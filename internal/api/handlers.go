package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"example.com/wellnest/internal/domain"
	"example.com/wellnest/internal/estimator"
	"example.com/wellnest/internal/tracking"
)

// StepLogger saves manual step entries.
type StepLogger interface {
	SaveManual(ctx context.Context, owner domain.Owner, entry domain.ManualEntry) (domain.StepSample, error)
	DefaultWeight() float64
}

// Sessions resolves per-user tracking sessions.
type Sessions interface {
	Session(owner domain.Owner) *tracking.Session
	Lookup(userID string) (*tracking.Session, bool)
}

// Handler coordinates HTTP requests with the estimator, the step service and tracking sessions.
type Handler struct {
	steps    StepLogger
	sessions Sessions
	logger   *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(steps StepLogger, sessions Sessions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{steps: steps, sessions: sessions, logger: logger}
}

// SampleView is the JSON form of a recorded step sample.
type SampleView struct {
	SampleID       string    `json:"sample_id"`
	Kind           string    `json:"kind"`
	Count          int       `json:"count"`
	DistanceKm     float64   `json:"distance_km"`
	CaloriesBurned int       `json:"calories_burned"`
	Notes          string    `json:"notes,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

func toSampleView(s domain.StepSample) SampleView {
	return SampleView{
		SampleID:       s.ID,
		Kind:           string(s.Kind),
		Count:          s.Count,
		DistanceKm:     s.DistanceKm,
		CaloriesBurned: s.CaloriesBurned,
		Notes:          s.Notes,
		RecordedAt:     s.RecordedAt,
	}
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Type   string      `json:"type"`
	Detail string      `json:"detail"`
	Sample *SampleView `json:"sample,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorResponse{Type: code, Detail: detail})
}

// writeJSON encodes before writing the header so an unencodable payload still yields a 500.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorResponse{Type: "internal_error", Detail: err.Error()})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("unable to parse body")
	}
	return nil
}

func writeEstimatorError(w http.ResponseWriter, err error) {
	if errors.Is(err, estimator.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}
