package motion

import "time"

const (
	DefaultStepThreshold = 12.0
	DefaultStepDebounce  = 250 * time.Millisecond
	DefaultStepCooldown  = 300 * time.Millisecond
)

// DetectorConfig holds the tunables of the edge-triggered step detector.
type DetectorConfig struct {
	// Threshold is the acceleration magnitude (m/s²) a sample must exceed.
	Threshold float64
	// Debounce is the minimum spacing between two registered steps.
	Debounce time.Duration
	// Cooldown suppresses detection after a step so one footfall spike is counted once.
	Cooldown time.Duration
}

// DefaultDetectorConfig returns the stock thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Threshold: DefaultStepThreshold,
		Debounce:  DefaultStepDebounce,
		Cooldown:  DefaultStepCooldown,
	}
}

// StepDetector registers a step when a sample crosses the threshold outside the debounce and cooldown windows.
// It is not safe for concurrent use.
type StepDetector struct {
	cfg           DetectorConfig
	lastStep      time.Time
	suppressUntil time.Time
	seen          bool
}

// NewStepDetector builds a detector. Zero fields in cfg fall back to defaults.
func NewStepDetector(cfg DetectorConfig) *StepDetector {
	def := DefaultDetectorConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &StepDetector{cfg: cfg}
}

// Config returns the effective thresholds.
func (d *StepDetector) Config() DetectorConfig {
	return d.cfg
}

// Observe feeds one sample and reports whether it registered a step.
func (d *StepDetector) Observe(s Sample) bool {
	if s.Magnitude() <= d.cfg.Threshold {
		return false
	}
	if d.seen {
		if s.At.Sub(d.lastStep) < d.cfg.Debounce {
			return false
		}
		if s.At.Before(d.suppressUntil) {
			return false
		}
	}
	d.seen = true
	d.lastStep = s.At
	d.suppressUntil = s.At.Add(d.cfg.Cooldown)
	return true
}

// Reset forgets the last registered step.
func (d *StepDetector) Reset() {
	d.seen = false
	d.lastStep = time.Time{}
	d.suppressUntil = time.Time{}
}
