package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/wellnest/internal/domain"
	"example.com/wellnest/internal/estimator"
	"example.com/wellnest/internal/motion"
)

var t0 = time.Date(2025, time.April, 7, 7, 30, 0, 0, time.UTC)

func step(i int) motion.Sample {
	return motion.Sample{X: 3, Y: 4, Z: 12, At: t0.Add(time.Duration(i) * 400 * time.Millisecond)}
}

func quietConfig() Config {
	return Config{CheckpointInterval: time.Hour, WeightKg: 70}
}

func TestSessionCountsStepsAndFlushesFinal(t *testing.T) {
	src := motion.NewFakeSource()
	rec := &stubRecorder{}
	s := NewSession(domain.Owner{UserID: "u1", Token: "tok"}, src, rec, quietConfig())

	require.Equal(t, StateIdle, s.Status().State)
	require.NoError(t, s.Start())
	require.True(t, src.Subscribed())

	for i := 0; i < 5; i++ {
		require.True(t, src.Emit(step(i)))
	}
	// Same footfall, suppressed by cooldown.
	src.Emit(motion.Sample{X: 3, Y: 4, Z: 12, At: step(4).At.Add(50 * time.Millisecond)})

	status := s.Status()
	require.Equal(t, StateTracking, status.State)
	require.Equal(t, 5, status.Count)
	require.NotNil(t, status.StartedAt)
	require.Equal(t, float64(step(4).At.Unix()), testutil.ToFloat64(lastStepGauge))

	final, err := s.Stop("walk")
	require.NoError(t, err)
	require.Equal(t, domain.SampleKindFinal, final.Kind)
	require.Equal(t, 5, final.Count)
	require.False(t, src.Subscribed())
	require.Equal(t, StateIdle, s.Status().State)

	require.NoError(t, s.Close())
	saved := rec.all()
	require.Len(t, saved, 1)
	require.Equal(t, final.ID, saved[0].sample.ID)
	require.Equal(t, "tok", saved[0].owner.Token)
}

func TestSessionIgnoresSamplesAfterStop(t *testing.T) {
	src := motion.NewFakeSource()
	s := NewSession(domain.Owner{UserID: "u1"}, src, &stubRecorder{}, quietConfig())
	defer s.Close()

	require.NoError(t, s.Start())
	src.Emit(step(0))
	_, err := s.Stop("")
	require.NoError(t, err)

	require.False(t, src.Emit(step(1)))
	s.observe(step(2))
	require.Equal(t, 1, s.Status().Count)
}

func TestSessionStartWithoutMotionStaysIdle(t *testing.T) {
	src := motion.NewFakeSource()
	src.SetPermissionDenied(true)
	rec := &stubRecorder{}
	s := NewSession(domain.Owner{UserID: "u1"}, src, rec, quietConfig())

	err := s.Start()
	require.ErrorIs(t, err, motion.ErrPermissionDenied)
	require.ErrorIs(t, err, motion.ErrCapabilityUnavailable)
	require.Equal(t, StateIdle, s.Status().State)

	_, err = s.Stop("")
	require.ErrorIs(t, err, ErrNotTracking)

	// Manual entry still works.
	count, err := s.AddSteps(1200)
	require.NoError(t, err)
	require.Equal(t, 1200, count)
	sample, err := s.SaveNow("treadmill")
	require.NoError(t, err)
	require.Equal(t, domain.SampleKindManual, sample.Kind)
	require.Equal(t, 1200, sample.Count)

	require.NoError(t, s.Close())
	require.Len(t, rec.all(), 1)
}

func TestSessionRejectsDoubleStart(t *testing.T) {
	src := motion.NewFakeSource()
	s := NewSession(domain.Owner{UserID: "u1"}, src, &stubRecorder{}, quietConfig())
	defer s.Close()

	require.NoError(t, s.Start())
	require.ErrorIs(t, s.Start(), ErrAlreadyTracking)
	require.Equal(t, 1, src.Subscriptions())
}

func TestSessionCheckpointsWhileTracking(t *testing.T) {
	src := motion.NewFakeSource()
	rec := &stubRecorder{}
	s := NewSession(domain.Owner{UserID: "u1"}, src, rec, Config{CheckpointInterval: 50 * time.Millisecond})

	require.NoError(t, s.Start())
	src.Emit(step(0))
	src.Emit(step(1))

	require.Eventually(t, func() bool { return len(rec.all()) >= 2 }, 2*time.Second, 5*time.Millisecond)

	_, err := s.Stop("")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	saved := rec.all()
	for _, r := range saved[:len(saved)-1] {
		require.Equal(t, domain.SampleKindCheckpoint, r.sample.Kind)
		require.Equal(t, 2, r.sample.Count)
	}
	last := saved[len(saved)-1].sample
	require.Equal(t, domain.SampleKindFinal, last.Kind)
	require.Equal(t, 2, last.Count)
}

func TestSessionSurfacesSaveFailures(t *testing.T) {
	src := motion.NewFakeSource()
	boom := errors.New("backend down")
	rec := &stubRecorder{err: boom}

	var (
		mu       sync.Mutex
		reported []error
	)
	s := NewSession(domain.Owner{UserID: "u1"}, src, rec, quietConfig(), WithErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	}))

	require.NoError(t, s.Start())
	src.Emit(step(0))
	_, err := s.Stop("")
	require.NoError(t, err, "stop does not wait on persistence")

	require.NoError(t, s.Close())
	require.ErrorIs(t, s.LastError(), domain.ErrPersistenceFailure)
	require.Equal(t, "persistence failure: backend down", s.Status().LastError)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	require.ErrorIs(t, reported[0], domain.ErrPersistenceFailure)
}

func TestSessionKeepsWrappedPersistenceErrors(t *testing.T) {
	wrapped := fmt.Errorf("%w: status 503", domain.ErrPersistenceFailure)
	s := NewSession(domain.Owner{UserID: "u1"}, motion.UnavailableSource{}, &stubRecorder{err: wrapped}, quietConfig())

	_, err := s.SaveNow("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.Equal(t, wrapped, s.LastError())
}

func TestSessionAddStepsClampsAtZero(t *testing.T) {
	s := NewSession(domain.Owner{UserID: "u1"}, motion.UnavailableSource{}, &stubRecorder{}, quietConfig())
	defer s.Close()

	count, err := s.AddSteps(10)
	require.NoError(t, err)
	require.Equal(t, 10, count)
	count, err = s.AddSteps(-25)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestSessionAddStepsRejectsOutOfRangeDeltas(t *testing.T) {
	s := NewSession(domain.Owner{UserID: "u1"}, motion.UnavailableSource{}, &stubRecorder{}, quietConfig())
	defer s.Close()

	for _, delta := range []int{MaxStepAdjustment + 1, -MaxStepAdjustment - 1, math.MaxInt, math.MinInt} {
		_, err := s.AddSteps(delta)
		require.ErrorIs(t, err, estimator.ErrInvalidInput, "delta %d", delta)
	}
	require.Equal(t, 0, s.Status().Count)

	s.mu.Lock()
	s.count = math.MaxInt - 5
	s.mu.Unlock()
	count, err := s.AddSteps(10)
	require.ErrorIs(t, err, estimator.ErrInvalidInput)
	require.Equal(t, math.MaxInt-5, count)
}

func TestSessionConcurrentAdjustmentsDuringCheckpoints(t *testing.T) {
	const (
		adders    = 8
		perAdder  = 200
		footfalls = 150
	)
	src := motion.NewFakeSource()
	rec := &stubRecorder{}
	s := NewSession(domain.Owner{UserID: "u1"}, src, rec, Config{CheckpointInterval: time.Millisecond, WeightKg: 70})
	require.NoError(t, s.Start())

	var work sync.WaitGroup
	for i := 0; i < adders; i++ {
		work.Add(1)
		go func() {
			defer work.Done()
			for j := 0; j < perAdder; j++ {
				_, err := s.AddSteps(1)
				assert.NoError(t, err)
			}
		}()
	}
	work.Add(1)
	go func() {
		defer work.Done()
		for i := 0; i < footfalls; i++ {
			src.Emit(step(i))
		}
	}()

	stopSaving := make(chan struct{})
	saverDone := make(chan struct{})
	go func() {
		defer close(saverDone)
		for {
			select {
			case <-stopSaving:
				return
			default:
			}
			_, err := s.SaveNow("")
			assert.NoError(t, err)
			_ = s.Status()
		}
	}()

	work.Wait()
	close(stopSaving)
	<-saverDone

	final, err := s.Stop("done")
	require.NoError(t, err)
	require.Equal(t, adders*perAdder+footfalls, final.Count)
	require.NoError(t, s.Close())

	saved := rec.all()
	require.NotEmpty(t, saved)
	last := saved[len(saved)-1].sample
	require.Equal(t, final.ID, last.ID)
	require.Equal(t, domain.SampleKindFinal, last.Kind)
	for _, r := range saved {
		require.LessOrEqual(t, r.sample.Count, final.Count)
	}
}

func TestSessionClosedRejectsWork(t *testing.T) {
	s := NewSession(domain.Owner{UserID: "u1"}, motion.NewFakeSource(), &stubRecorder{}, quietConfig())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Start(), ErrSessionClosed)
	_, err := s.SaveNow("")
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestManagerKeepsOneSessionPerUser(t *testing.T) {
	sources := map[string]*motion.FakeSource{"u1": motion.NewFakeSource()}
	factory := func(userID string) motion.Source {
		if src, ok := sources[userID]; ok {
			return src
		}
		return motion.UnavailableSource{}
	}
	rec := &stubRecorder{}
	m := NewManager(factory, rec, quietConfig(), nil)

	first := m.Session(domain.Owner{UserID: "u1", Token: "old"})
	again := m.Session(domain.Owner{UserID: "u1", Token: "new"})
	require.Same(t, first, again)

	_, ok := m.Lookup("u2")
	require.False(t, ok)
	require.ErrorIs(t, m.Session(domain.Owner{UserID: "u2"}).Start(), motion.ErrCapabilityUnavailable)

	require.NoError(t, first.Start())
	sources["u1"].Emit(step(0))

	require.NoError(t, m.Close())
	saved := rec.all()
	require.Len(t, saved, 1)
	require.Equal(t, domain.SampleKindFinal, saved[0].sample.Kind)
	require.Equal(t, "new", saved[0].owner.Token)

	_, ok = m.Lookup("u1")
	require.False(t, ok)
}

type recorded struct {
	owner  domain.Owner
	sample domain.StepSample
}

type stubRecorder struct {
	mu    sync.Mutex
	saved []recorded
	err   error
}

func (r *stubRecorder) Record(_ context.Context, owner domain.Owner, sample domain.StepSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, recorded{owner: owner, sample: sample})
	return nil
}

func (r *stubRecorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.saved...)
}
