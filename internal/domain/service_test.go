package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/wellnest/internal/estimator"
)

func TestNewStepSampleDerivesEstimates(t *testing.T) {
	at := time.Date(2025, time.May, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	sample, err := NewStepSample(SampleKindCheckpoint, 10000, 70, "morning walk", at)
	require.NoError(t, err)

	require.NotEmpty(t, sample.ID)
	require.Equal(t, SampleKindCheckpoint, sample.Kind)
	require.InDelta(t, 7.62, sample.DistanceKm, 1e-9)
	require.Equal(t, 373, sample.CaloriesBurned)
	require.Equal(t, time.UTC, sample.RecordedAt.Location())

	_, err = NewStepSample(SampleKindManual, -3, 70, "", at)
	require.ErrorIs(t, err, estimator.ErrInvalidInput)
}

func TestSaveManualUsesDefaultWeight(t *testing.T) {
	rec := &stubRecorder{}
	svc := NewService(rec, 0, zap.NewNop())
	require.Equal(t, estimator.DefaultBodyWeightKg, svc.DefaultWeight())

	sample, err := svc.SaveManual(context.Background(), Owner{UserID: "user-1", Token: "tok"}, ManualEntry{Count: 10000, Notes: "  lunch  "})
	require.NoError(t, err)
	require.Equal(t, SampleKindManual, sample.Kind)
	require.Equal(t, 373, sample.CaloriesBurned)
	require.Equal(t, "lunch", sample.Notes)

	require.Len(t, rec.samples, 1)
	require.Equal(t, "user-1", rec.owners[0].UserID)
	require.Equal(t, sample, rec.samples[0])
}

func TestSaveManualReturnsSampleOnPersistenceFailure(t *testing.T) {
	rec := &stubRecorder{err: errors.New("connection refused")}
	svc := NewService(rec, 80, nil)

	sample, err := svc.SaveManual(context.Background(), Owner{UserID: "user-1"}, ManualEntry{Count: 5000, WeightKg: 60})
	require.ErrorIs(t, err, ErrPersistenceFailure)
	require.Equal(t, 5000, sample.Count)
	require.NotZero(t, sample.CaloriesBurned)
}

func TestSaveManualRejectsNegativeCount(t *testing.T) {
	rec := &stubRecorder{}
	svc := NewService(rec, 70, nil)

	_, err := svc.SaveManual(context.Background(), Owner{UserID: "user-1"}, ManualEntry{Count: -1})
	require.ErrorIs(t, err, estimator.ErrInvalidInput)
	require.Empty(t, rec.samples)
}

type stubRecorder struct {
	err     error
	owners  []Owner
	samples []StepSample
}

func (r *stubRecorder) Record(_ context.Context, owner Owner, sample StepSample) error {
	r.owners = append(r.owners, owner)
	r.samples = append(r.samples, sample)
	return r.err
}
