package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/wellnest/internal/domain"
	"example.com/wellnest/internal/trackers"
)

func stepMessage(t *testing.T, offset int64, evt trackers.StepRecorded) kafka.Message {
	t.Helper()
	value, err := json.Marshal(evt)
	require.NoError(t, err)
	return kafka.Message{
		Topic:  "step_samples",
		Offset: offset,
		Key:    []byte(evt.UserID),
		Value:  value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(trackers.StepRecordedEvent)},
		},
	}
}

func stepEvent() trackers.StepRecorded {
	return trackers.StepRecorded{
		SampleID:   "sample-1",
		UserID:     "user-1",
		Kind:       "final",
		WeightKg:   70,
		RecordedAt: time.Date(2025, time.May, 5, 18, 0, 0, 0, time.UTC),
		Payload:    trackers.Payload{Count: 10000, Distance: 7.62, CaloriesBurned: 373, Notes: "evening"},
	}
}

func TestProcessorRelaysAndCommits(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{stepMessage(t, 10, stepEvent())}}
	target := &stubRecorder{}
	before := testutil.ToFloat64(relayedCounter.WithLabelValues("step_samples", "final"))

	processor := NewProcessor(reader, target, WithLogger(zap.NewNop()), WithServiceToken("svc-token"))
	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, reader.commitCalls)
	require.Len(t, target.samples, 1)
	require.Equal(t, domain.Owner{UserID: "user-1", Token: "svc-token"}, target.owners[0])

	got := target.samples[0]
	require.Equal(t, "sample-1", got.ID)
	require.Equal(t, domain.SampleKindFinal, got.Kind)
	require.Equal(t, 10000, got.Count)
	require.InDelta(t, 7.62, got.DistanceKm, 1e-9)
	require.Equal(t, 373, got.CaloriesBurned)
	require.Equal(t, before+1, testutil.ToFloat64(relayedCounter.WithLabelValues("step_samples", "final")))
}

func TestProcessorSkipsCommitOnRelayError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{stepMessage(t, 20, stepEvent())}}
	target := &stubRecorder{err: errors.New("backend down")}

	err := NewProcessor(reader, target).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	noHeader := stepMessage(t, 1, stepEvent())
	noHeader.Headers = nil

	otherEvent := stepMessage(t, 2, stepEvent())
	otherEvent.Headers = []kafka.Header{{Key: "event_type", Value: []byte("activity.created")}}

	badJSON := stepMessage(t, 3, stepEvent())
	badJSON.Value = []byte("{")

	noUser := stepEvent()
	noUser.UserID = ""
	anonymous := stepMessage(t, 4, noUser)

	reader := &stubReader{messages: []kafka.Message{noHeader, otherEvent, badJSON, anonymous}}
	target := &stubRecorder{}

	err := NewProcessor(reader, target).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 4, reader.commitCalls)
	require.Empty(t, target.samples)
}

func TestDecodeMessageRederivesEstimates(t *testing.T) {
	evt := stepEvent()
	evt.Count = 100
	evt.Distance = 999.5
	evt.CaloriesBurned = -40

	_, sample, err := decodeMessage(stepMessage(t, 1, evt))
	require.NoError(t, err)
	require.Equal(t, "sample-1", sample.ID)
	require.Equal(t, 100, sample.Count)
	require.InDelta(t, 0.0762, sample.DistanceKm, 1e-9)
	require.Equal(t, 4, sample.CaloriesBurned)
	require.Equal(t, 70.0, sample.WeightKg)
	require.Equal(t, "evening", sample.Notes)
}

func TestDecodeMessageRejectsUnderivableEvents(t *testing.T) {
	noWeight := stepEvent()
	noWeight.WeightKg = 0

	hugeWeight := stepEvent()
	hugeWeight.WeightKg = 1e300

	negative := stepEvent()
	negative.Count = -1

	for name, evt := range map[string]trackers.StepRecorded{
		"missing weight": noWeight,
		"huge weight":    hugeWeight,
		"negative count": negative,
	} {
		_, _, err := decodeMessage(stepMessage(t, 1, evt))
		require.Error(t, err, name)
	}

	reader := &stubReader{messages: []kafka.Message{stepMessage(t, 1, noWeight), stepMessage(t, 2, negative)}}
	target := &stubRecorder{}
	err := NewProcessor(reader, target).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, reader.commitCalls)
	require.Empty(t, target.samples)
}

func TestDecodeMessageFallsBackToKey(t *testing.T) {
	evt := stepEvent()
	evt.UserID = ""
	msg := stepMessage(t, 1, evt)
	msg.Key = []byte("user-from-key")

	owner, _, err := decodeMessage(msg)
	require.NoError(t, err)
	require.Equal(t, "user-from-key", owner.UserID)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.commitCalls += len(msgs)
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubRecorder struct {
	err     error
	owners  []domain.Owner
	samples []domain.StepSample
}

func (r *stubRecorder) Record(_ context.Context, owner domain.Owner, sample domain.StepSample) error {
	if r.err != nil {
		return r.err
	}
	r.owners = append(r.owners, owner)
	r.samples = append(r.samples, sample)
	return nil
}
