package tracking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wellnest",
		Subsystem: "tracking",
		Name:      "active_sessions",
		Help:      "Sessions currently subscribed to a motion source.",
	})

	stepsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "tracking",
		Name:      "steps_detected_total",
		Help:      "Steps registered by session detectors.",
	})

	lastStepGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wellnest",
		Subsystem: "tracking",
		Name:      "last_step_detected_timestamp_seconds",
		Help:      "Motion timestamp of the most recent step any session registered.",
	})

	checkpointsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "tracking",
		Name:      "checkpoints_total",
		Help:      "Periodic checkpoint samples queued for persistence.",
	})

	saveFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "tracking",
		Name:      "save_failures_total",
		Help:      "Queued step samples the recorder rejected, labeled by sample kind.",
	}, []string{"kind"})

	capabilityUnavailable = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "tracking",
		Name:      "capability_unavailable_total",
		Help:      "Start attempts rejected because no motion source could be subscribed.",
	})
)

func init() {
	prometheus.MustRegister(activeSessions, stepsDetected, lastStepGauge, checkpointsCounter, saveFailures, capabilityUnavailable)
}

func recordCapabilityUnavailable() {
	capabilityUnavailable.Inc()
}

func recordStepDetected(at time.Time) {
	stepsDetected.Inc()
	if !at.IsZero() {
		lastStepGauge.Set(float64(at.Unix()))
	}
}
