package motion

import "github.com/prometheus/client_golang/prometheus"

var (
	samplesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "motion",
		Name:      "samples_total",
		Help:      "Number of motion samples delivered to tracking sessions, per topic.",
	}, []string{"topic"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "motion",
		Name:      "decode_errors_total",
		Help:      "Number of malformed motion records skipped, per topic.",
	}, []string{"topic"})

	staleCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "motion",
		Name:      "stale_samples_total",
		Help:      "Number of motion records dropped for predating the subscription, per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(samplesCounter, decodeErrorCounter, staleCounter)
}

func recordSample(topic string) {
	samplesCounter.WithLabelValues(topic).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordStaleSample(topic string) {
	staleCounter.WithLabelValues(topic).Inc()
}
