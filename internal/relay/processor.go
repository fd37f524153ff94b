// Package relay forwards step events published to Kafka on to the trackers backend.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/wellnest/internal/domain"
	"example.com/wellnest/internal/trackers"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithServiceToken sets the bearer token presented to the backend on behalf of every user.
func WithServiceToken(token string) Option {
	return func(p *Processor) {
		p.token = token
	}
}

// Processor pulls step events from Kafka and records them through a domain.Recorder.
type Processor struct {
	reader Reader
	target domain.Recorder
	token  string
	logger *zap.Logger
}

// NewProcessor constructs a Processor with the provided reader and target recorder.
func NewProcessor(reader Reader, target domain.Recorder, opts ...Option) *Processor {
	p := &Processor{
		reader: reader,
		target: target,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that relays messages until the context is cancelled. Malformed records are
// committed and skipped; records the backend rejects stay uncommitted.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Warn("fetch error", zap.Error(err))
			continue
		}

		owner, sample, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Warn("decode error",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(decodeErr))
			recordDecodeError(msg.Topic)
			// Commit malformed messages to avoid poison-pill loops.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Warn("commit error after decode failure", zap.Error(commitErr))
			}
			continue
		}
		owner.Token = p.token

		if err := p.target.Record(ctx, owner, sample); err != nil {
			p.logger.Warn("relay error",
				zap.String("user_id", owner.UserID),
				zap.String("sample_id", sample.ID),
				zap.Error(err))
			recordRelayError(msg.Topic, sample.Kind)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Warn("commit error", zap.Error(commitErr))
		} else {
			recordRelayed(msg.Topic, sample)
		}
	}
}

func decodeMessage(msg kafka.Message) (domain.Owner, domain.StepSample, error) {
	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return domain.Owner{}, domain.StepSample{}, errors.New("missing event_type header")
	}
	if string(eventType) != trackers.StepRecordedEvent {
		return domain.Owner{}, domain.StepSample{}, fmt.Errorf("unexpected event_type %q", eventType)
	}

	var evt trackers.StepRecorded
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return domain.Owner{}, domain.StepSample{}, fmt.Errorf("decode step event: %w", err)
	}
	if evt.UserID == "" {
		evt.UserID = string(msg.Key)
	}
	if evt.UserID == "" {
		return domain.Owner{}, domain.StepSample{}, errors.New("step event without user id")
	}

	// Distance and calories are re-derived; the published figures are not trusted.
	sample, err := domain.NewStepSample(domain.SampleKind(evt.Kind), evt.Count, evt.WeightKg, evt.Notes, evt.RecordedAt)
	if err != nil {
		return domain.Owner{}, domain.StepSample{}, fmt.Errorf("step event %s: %w", evt.SampleID, err)
	}
	if evt.SampleID != "" {
		sample.ID = evt.SampleID
	}
	return domain.Owner{UserID: evt.UserID}, sample, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
