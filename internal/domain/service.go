// Package domain defines step samples and the manual logging workflow.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/wellnest/internal/estimator"
)

// ErrPersistenceFailure indicates the backend did not accept a sample. The in-memory count stays valid.
var ErrPersistenceFailure = errors.New("persistence failure")

// Recorder hands samples to the persistence backend.
type Recorder interface {
	Record(ctx context.Context, owner Owner, sample StepSample) error
}

// ManualEntry captures a user-typed step log.
type ManualEntry struct {
	Count    int
	Notes    string
	WeightKg float64
}

// Service orchestrates manual step logging.
type Service struct {
	recorder      Recorder
	defaultWeight float64
	logger        *zap.Logger
	now           func() time.Time
}

// NewService constructs a Service. A non-positive defaultWeight falls back to estimator.DefaultBodyWeightKg.
func NewService(recorder Recorder, defaultWeight float64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		recorder:      recorder,
		defaultWeight: estimator.WeightOrDefault(defaultWeight, estimator.DefaultBodyWeightKg),
		logger:        logger,
		now:           time.Now,
	}
}

// DefaultWeight returns the body weight used when callers supply none.
func (s *Service) DefaultWeight() float64 {
	return s.defaultWeight
}

// SaveManual builds a sample from the entry and records it. When recording fails the built sample is still
// returned alongside an error wrapping ErrPersistenceFailure.
func (s *Service) SaveManual(ctx context.Context, owner Owner, entry ManualEntry) (StepSample, error) {
	weight := estimator.WeightOrDefault(entry.WeightKg, s.defaultWeight)
	sample, err := NewStepSample(SampleKindManual, entry.Count, weight, strings.TrimSpace(entry.Notes), s.now())
	if err != nil {
		return StepSample{}, err
	}

	if err := s.recorder.Record(ctx, owner, sample); err != nil {
		s.logger.Warn("manual step save failed",
			zap.String("user_id", owner.UserID),
			zap.String("sample_id", sample.ID),
			zap.Error(err))
		if !errors.Is(err, ErrPersistenceFailure) {
			err = fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
		return sample, err
	}

	s.logger.Info("manual step save recorded",
		zap.String("user_id", owner.UserID),
		zap.String("sample_id", sample.ID),
		zap.Int("count", sample.Count))
	return sample, nil
}
