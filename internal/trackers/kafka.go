package trackers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/wellnest/internal/domain"
)

// StepRecordedEvent is the event type header on step-sample records.
const StepRecordedEvent = "steps.recorded"

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// StepRecorded is the Kafka representation of a logged sample. WeightKg travels with the event so
// consumers can re-derive distance and calories instead of trusting the payload.
type StepRecorded struct {
	SampleID   string    `json:"sample_id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	WeightKg   float64   `json:"weight_kg"`
	RecordedAt time.Time `json:"recorded_at"`
	Payload
}

// KafkaRecorder publishes samples to a step-events topic keyed by user id.
type KafkaRecorder struct {
	producer messageWriter
	topic    string
}

// NewKafkaRecorder constructs a KafkaRecorder.
func NewKafkaRecorder(producer messageWriter, topic string) *KafkaRecorder {
	return &KafkaRecorder{producer: producer, topic: topic}
}

// Record implements domain.Recorder.
func (r *KafkaRecorder) Record(ctx context.Context, owner domain.Owner, sample domain.StepSample) (err error) {
	start := time.Now()
	defer func() { recordSave("kafka", sample, start, err) }()

	value, err := json.Marshal(StepRecorded{
		SampleID:   sample.ID,
		UserID:     owner.UserID,
		Kind:       string(sample.Kind),
		WeightKg:   sample.WeightKg,
		RecordedAt: sample.RecordedAt,
		Payload:    PayloadFromSample(sample),
	})
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(owner.UserID),
		Value: value,
		Time:  sample.RecordedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(StepRecordedEvent)},
			{Key: "sample_kind", Value: []byte(sample.Kind)},
		},
	}
	if err := r.producer.WriteMessages(ctx, r.topic, msg); err != nil {
		return fmt.Errorf("%w: publish to %s: %v", domain.ErrPersistenceFailure, r.topic, err)
	}
	return nil
}
