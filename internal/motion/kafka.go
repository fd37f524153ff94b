package motion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Reader exposes the minimal kafka.Reader interface needed by KafkaSource.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// ReaderFactory opens a reader for one user's subscription.
type ReaderFactory func(userID string) Reader

// KafkaConfig describes the device gateway stream.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	GroupPrefix string
}

// wireSample is the JSON record published by the device gateway.
type wireSample struct {
	UserID string    `json:"user_id"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Z      float64   `json:"z"`
	At     time.Time `json:"ts"`
}

// KafkaOption configures optional behaviour for KafkaSource.
type KafkaOption func(*KafkaSource)

// WithLogger overrides the logger used to report stream errors.
func WithLogger(logger *zap.Logger) KafkaOption {
	return func(s *KafkaSource) {
		s.logger = logger
	}
}

// WithReaderFactory overrides how readers are opened.
func WithReaderFactory(factory ReaderFactory) KafkaOption {
	return func(s *KafkaSource) {
		s.newReader = factory
	}
}

// WithClock overrides the time source that marks when a subscription began.
func WithClock(now func() time.Time) KafkaOption {
	return func(s *KafkaSource) {
		s.now = now
	}
}

// KafkaSource streams one user's motion samples from the device gateway topic. The consumer group
// is durable, so a resubscription may be handed records from before it started; those are
// committed but never delivered.
type KafkaSource struct {
	userID    string
	topic     string
	newReader ReaderFactory
	logger    *zap.Logger
	now       func() time.Time
}

// NewKafkaSource builds a source for userID. With no brokers configured every subscription
// fails with ErrCapabilityUnavailable.
func NewKafkaSource(cfg KafkaConfig, userID string, opts ...KafkaOption) *KafkaSource {
	s := &KafkaSource{
		userID: userID,
		topic:  cfg.Topic,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	if len(cfg.Brokers) > 0 && cfg.Topic != "" {
		s.newReader = func(userID string) Reader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:        cfg.Brokers,
				GroupID:        fmt.Sprintf("%s-%s", cfg.GroupPrefix, userID),
				Topic:          cfg.Topic,
				StartOffset:    kafka.LastOffset,
				MinBytes:       1,
				MaxBytes:       1e6,
				MaxWait:        250 * time.Millisecond,
				CommitInterval: time.Second,
			})
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe implements Source. Samples are delivered from a background goroutine until unsubscribe.
func (s *KafkaSource) Subscribe(onSample func(Sample)) (Unsubscribe, error) {
	if s.newReader == nil {
		return nil, ErrCapabilityUnavailable
	}
	reader := s.newReader(s.userID)
	if reader == nil {
		return nil, ErrCapabilityUnavailable
	}

	since := s.now()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.run(ctx, reader, since, onSample); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("motion stream stopped", zap.String("user_id", s.userID), zap.Error(err))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			if err := reader.Close(); err != nil {
				s.logger.Warn("motion reader close failed", zap.String("user_id", s.userID), zap.Error(err))
			}
		})
	}, nil
}

func (s *KafkaSource) run(ctx context.Context, reader Reader, since time.Time, onSample func(Sample)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return context.Canceled
			}
			s.logger.Warn("motion fetch error", zap.String("topic", s.topic), zap.Error(err))
			continue
		}

		sample, owner, decodeErr := decodeSample(msg, s.now)
		switch {
		case decodeErr != nil:
			s.logger.Warn("motion decode error",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(decodeErr))
			recordDecodeError(msg.Topic)
		case owner != s.userID:
		case sample.At.Before(since):
			recordStaleSample(msg.Topic)
		default:
			onSample(sample)
			recordSample(msg.Topic)
		}

		// Malformed, foreign and stale records are committed too so they are never re-read.
		if commitErr := reader.CommitMessages(ctx, msg); commitErr != nil && ctx.Err() == nil {
			s.logger.Warn("motion commit error", zap.Error(commitErr))
		}
	}
}

func decodeSample(msg kafka.Message, now func() time.Time) (Sample, string, error) {
	var wire wireSample
	if err := json.Unmarshal(msg.Value, &wire); err != nil {
		return Sample{}, "", err
	}
	owner := wire.UserID
	if owner == "" {
		owner = string(msg.Key)
	}
	if owner == "" {
		return Sample{}, "", errors.New("motion sample without user id")
	}
	at := wire.At
	if at.IsZero() {
		at = msg.Time
	}
	if at.IsZero() {
		at = now().UTC()
	}
	return Sample{X: wire.X, Y: wire.Y, Z: wire.Z, At: at}, owner, nil
}
