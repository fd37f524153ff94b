package trackers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/wellnest/internal/domain"
)

var (
	savesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellnest",
		Subsystem: "trackers",
		Name:      "step_saves_total",
		Help:      "Step samples handed to the backend, labeled by recorder, sample kind and outcome.",
	}, []string{"recorder", "kind", "outcome"})

	saveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wellnest",
		Subsystem: "trackers",
		Name:      "step_save_duration_seconds",
		Help:      "Time spent delivering a step sample.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"recorder"})

	lastSavedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wellnest",
		Subsystem: "trackers",
		Name:      "last_sample_saved_timestamp_seconds",
		Help:      "Recorded-at time of the most recent step sample each recorder delivered.",
	}, []string{"recorder"})
)

func init() {
	prometheus.MustRegister(savesCounter, saveDuration, lastSavedGauge)
}

func recordSave(recorder string, sample domain.StepSample, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	savesCounter.WithLabelValues(recorder, string(sample.Kind), outcome).Inc()
	saveDuration.WithLabelValues(recorder).Observe(time.Since(start).Seconds())
	if err == nil && !sample.RecordedAt.IsZero() {
		lastSavedGauge.WithLabelValues(recorder).Set(float64(sample.RecordedAt.Unix()))
	}
}
