package relay

import (
	"github.com/prometheus/client_golang/prometheus"

	"example.com/wellnest/internal/domain"
)

var (
	relayedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "relay",
		Name:      "messages_relayed_total",
		Help:      "Step events accepted by the trackers backend.",
	}, []string{"topic", "kind"})

	relayErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "relay",
		Name:      "relay_errors_total",
		Help:      "Step events the trackers backend rejected, grouped by topic and sample kind.",
	}, []string{"topic", "kind"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "relay",
		Name:      "decode_errors_total",
		Help:      "Number of decode failures per topic.",
	}, []string{"topic"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wellnest",
		Subsystem: "relay",
		Name:      "last_message_timestamp_seconds",
		Help:      "Recorded-at timestamp of the most recent relayed step event per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(relayedCounter, relayErrorCounter, decodeErrorCounter, lastMessageGauge)
}

func recordRelayed(topic string, sample domain.StepSample) {
	relayedCounter.WithLabelValues(topic, string(sample.Kind)).Inc()
	if !sample.RecordedAt.IsZero() {
		lastMessageGauge.WithLabelValues(topic).Set(float64(sample.RecordedAt.Unix()))
	}
}

func recordRelayError(topic string, kind domain.SampleKind) {
	relayErrorCounter.WithLabelValues(topic, string(kind)).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}
