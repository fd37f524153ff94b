// Package tracking runs step-counting sessions on top of a motion source.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/wellnest/internal/domain"
	"example.com/wellnest/internal/estimator"
	"example.com/wellnest/internal/motion"
)

var (
	// ErrAlreadyTracking is returned by Start on a session that is already tracking.
	ErrAlreadyTracking = errors.New("session already tracking")
	// ErrNotTracking is returned by Stop on an idle session.
	ErrNotTracking = errors.New("session not tracking")
	// ErrSessionClosed is returned once Close has been called.
	ErrSessionClosed = errors.New("session closed")
)

// State is the lifecycle position of a Session.
type State string

const (
	StateIdle     State = "idle"
	StateTracking State = "tracking"
)

const saveQueueSize = 64

// MaxStepAdjustment bounds a single manual adjustment.
const MaxStepAdjustment = 1_000_000

// Config holds session tunables.
type Config struct {
	CheckpointInterval time.Duration
	SaveTimeout        time.Duration
	WeightKg           float64
	Detector           motion.DetectorConfig
}

func (c Config) withDefaults() Config {
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = time.Minute
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 10 * time.Second
	}
	c.WeightKg = estimator.WeightOrDefault(c.WeightKg, estimator.DefaultBodyWeightKg)
	return c
}

// Option configures optional Session behaviour.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithErrorHandler registers a callback for persistence failures.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// WithClock overrides the time source used to stamp samples.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Status is a point-in-time view of a Session.
type Status struct {
	SessionID      string                           `json:"session_id"`
	UserID         string                           `json:"user_id"`
	State          State                            `json:"state"`
	Count          int                              `json:"count"`
	DistanceKm     float64                          `json:"distance_km"`
	CaloriesBurned int                              `json:"calories_burned"`
	Classification estimator.ActivityClassification `json:"classification"`
	StartedAt      *time.Time                       `json:"started_at,omitempty"`
	LastError      string                           `json:"last_error,omitempty"`
}

// Session owns one user's listener handle, checkpoint timer and running count.
type Session struct {
	id       string
	source   motion.Source
	recorder domain.Recorder
	cfg      Config
	logger   *zap.Logger
	onError  func(error)
	now      func() time.Time

	// lifecycle serializes Start, Stop and Close.
	lifecycle sync.Mutex

	// mu guards every field below.
	mu          sync.Mutex
	owner       domain.Owner
	state       State
	count       int
	startedAt   time.Time
	detector    *motion.StepDetector
	unsubscribe motion.Unsubscribe
	stopTicker  chan struct{}
	tickerDone  chan struct{}
	lastErr     error
	closed      bool

	queue      chan domain.StepSample
	writerDone chan struct{}
}

// NewSession builds an idle session.
func NewSession(owner domain.Owner, source motion.Source, recorder domain.Recorder, cfg Config, opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		source:     source,
		recorder:   recorder,
		cfg:        cfg.withDefaults(),
		logger:     zap.NewNop(),
		onError:    func(error) {},
		now:        time.Now,
		owner:      owner,
		state:      StateIdle,
		queue:      make(chan domain.StepSample, saveQueueSize),
		writerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session_id", s.id), zap.String("user_id", owner.UserID))
	go s.writeLoop()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetToken replaces the bearer token forwarded with future saves.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner.Token = token
}

// Start subscribes to the motion source and begins periodic checkpoints. When the source is unavailable
// the session stays idle and the capability error is returned; manual entry keeps working.
func (s *Session) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state == StateTracking {
		s.mu.Unlock()
		return ErrAlreadyTracking
	}
	s.mu.Unlock()

	detector := motion.NewStepDetector(s.cfg.Detector)
	unsubscribe, err := s.source.Subscribe(s.observe)
	if err != nil {
		recordCapabilityUnavailable()
		s.logger.Info("motion tracking unavailable, manual entry only", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.state = StateTracking
	s.count = 0
	s.startedAt = s.now().UTC()
	s.detector = detector
	s.unsubscribe = unsubscribe
	s.stopTicker = make(chan struct{})
	s.tickerDone = make(chan struct{})
	stop, done := s.stopTicker, s.tickerDone
	s.mu.Unlock()

	go s.checkpointLoop(stop, done)
	activeSessions.Inc()
	s.logger.Info("step tracking started", zap.Duration("checkpoint_interval", s.cfg.CheckpointInterval))
	return nil
}

// Stop detaches the listener, clears the checkpoint timer and queues the running count as the final save.
// It does not wait for the save to reach the backend.
func (s *Session) Stop(notes string) (domain.StepSample, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.state != StateTracking {
		s.mu.Unlock()
		return domain.StepSample{}, ErrNotTracking
	}
	// Leaving Tracking first makes observe drop samples that race with unsubscribe.
	s.state = StateIdle
	unsubscribe, stop, done := s.unsubscribe, s.stopTicker, s.tickerDone
	s.unsubscribe, s.stopTicker, s.tickerDone = nil, nil, nil
	s.mu.Unlock()

	unsubscribe()
	close(stop)
	<-done
	activeSessions.Dec()

	s.mu.Lock()
	count := s.count
	s.mu.Unlock()

	sample, err := s.enqueue(domain.SampleKindFinal, count, notes, true)
	if err != nil {
		return domain.StepSample{}, err
	}
	s.logger.Info("step tracking stopped", zap.Int("count", count))
	return sample, nil
}

// AddSteps applies a manual adjustment to the running count. Negative deltas never take it below zero.
// Deltas larger than MaxStepAdjustment, or that would overflow the count, are rejected.
func (s *Session) AddSteps(delta int) (int, error) {
	if delta > MaxStepAdjustment || delta < -MaxStepAdjustment {
		return 0, fmt.Errorf("%w: step adjustment must be within ±%d, got %d", estimator.ErrInvalidInput, MaxStepAdjustment, delta)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if delta > 0 && s.count > math.MaxInt-delta {
		return s.count, fmt.Errorf("%w: step count would overflow", estimator.ErrInvalidInput)
	}
	s.count += delta
	if s.count < 0 {
		s.count = 0
	}
	return s.count, nil
}

// SaveNow queues the running count as a user-triggered save without leaving the current state.
func (s *Session) SaveNow(notes string) (domain.StepSample, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	count := s.count
	s.mu.Unlock()
	return s.enqueue(domain.SampleKindManual, count, notes, true)
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		SessionID: s.id,
		UserID:    s.owner.UserID,
		State:     s.state,
		Count:     s.count,
	}
	if summary, err := estimator.Summarize(s.count, s.cfg.WeightKg); err == nil {
		st.DistanceKm = summary.DistanceKm
		st.CaloriesBurned = summary.CaloriesBurned
		st.Classification = summary.Classification
	}
	if s.state == StateTracking {
		started := s.startedAt
		st.StartedAt = &started
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// LastError returns the most recent persistence failure, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close stops tracking if needed, then waits for queued saves to drain.
func (s *Session) Close() error {
	if _, err := s.Stop("session closed"); err != nil && !errors.Is(err, ErrNotTracking) {
		return err
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.queue)
	<-s.writerDone
	return nil
}

func (s *Session) observe(sample motion.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateTracking || s.detector == nil {
		return
	}
	if s.detector.Observe(sample) {
		s.count++
		recordStepDetected(sample.At)
	}
}

func (s *Session) checkpointLoop(stop <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(s.cfg.CheckpointInterval)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			tracking := s.state == StateTracking
			count := s.count
			s.mu.Unlock()
			if !tracking {
				return
			}
			if _, err := s.enqueue(domain.SampleKindCheckpoint, count, "", false); err != nil {
				s.logger.Warn("checkpoint skipped", zap.Error(err))
				continue
			}
			checkpointsCounter.Inc()
		}
	}
}

// enqueue builds a sample and hands it to the single writer. Checkpoints are dropped rather than
// blocking when the queue is full; manual and final saves wait for room.
func (s *Session) enqueue(kind domain.SampleKind, count int, notes string, wait bool) (domain.StepSample, error) {
	sample, err := domain.NewStepSample(kind, count, s.cfg.WeightKg, notes, s.now())
	if err != nil {
		return domain.StepSample{}, err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.StepSample{}, ErrSessionClosed
	}

	if wait {
		s.queue <- sample
		return sample, nil
	}
	select {
	case s.queue <- sample:
		return sample, nil
	default:
		return domain.StepSample{}, errors.New("save queue full")
	}
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)
	for sample := range s.queue {
		s.mu.Lock()
		owner := s.owner
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
		err := s.recorder.Record(ctx, owner, sample)
		cancel()

		if err != nil {
			if !errors.Is(err, domain.ErrPersistenceFailure) {
				err = fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
			}
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			saveFailures.WithLabelValues(string(sample.Kind)).Inc()
			s.logger.Warn("step save failed",
				zap.String("sample_id", sample.ID),
				zap.String("kind", string(sample.Kind)),
				zap.Int("count", sample.Count),
				zap.Error(err))
			s.onError(err)
			continue
		}
		s.logger.Debug("step save recorded", zap.String("sample_id", sample.ID), zap.String("kind", string(sample.Kind)))
	}
}
