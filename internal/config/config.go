// Package config centralises configuration parsing for the step service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Recorder kinds accepted by RECORDER. They are mutually exclusive: in kafka mode the relay is
// the only writer to the backend, so every sample reaches it exactly once.
const (
	RecorderHTTP  = "http"
	RecorderKafka = "kafka"
)

// Config captures runtime configuration values for the step service.
type Config struct {
	HTTPAddress         string
	LogLevel            string
	BackendURL          string
	BackendTimeout      time.Duration
	Recorder            string // RecorderHTTP or RecorderKafka.
	CheckpointInterval  time.Duration
	SaveTimeout         time.Duration
	DefaultBodyWeightKg float64
	StepThreshold       float64       // Acceleration magnitude in m/s² a sample must exceed.
	StepDebounce        time.Duration // Minimum spacing between two registered steps.
	StepCooldown        time.Duration // Suppression window after a registered step.
	KafkaBrokers        []string
	MotionTopic         string
	MotionGroupPrefix   string
	StepEventsTopic     string
	RelayGroupID        string
	RelayServiceToken   string // Bearer token the relay presents to the backend.
	MetricsAddress      string
	JWTSecret           string
	JWTIssuer           string
	ShutdownTimeout     time.Duration
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
func Load() Config {
	cfg := Config{
		HTTPAddress:         getEnv("HTTP_ADDRESS", ":8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		BackendURL:          getEnv("BACKEND_URL", "http://localhost:3000"),
		BackendTimeout:      getDurationEnv("BACKEND_TIMEOUT", 10*time.Second),
		Recorder:            strings.ToLower(getEnv("RECORDER", RecorderHTTP)),
		CheckpointInterval:  getDurationEnv("CHECKPOINT_INTERVAL", time.Minute),
		SaveTimeout:         getDurationEnv("SAVE_TIMEOUT", 10*time.Second),
		DefaultBodyWeightKg: getFloatEnv("DEFAULT_BODY_WEIGHT_KG", 70),
		StepThreshold:       getFloatEnv("STEP_THRESHOLD", 12),
		StepDebounce:        getDurationEnv("STEP_DEBOUNCE", 250*time.Millisecond),
		StepCooldown:        getDurationEnv("STEP_COOLDOWN", 300*time.Millisecond),
		MotionTopic:         getEnv("MOTION_TOPIC", "motion_samples"),
		MotionGroupPrefix:   getEnv("MOTION_GROUP_PREFIX", "wellnest-motion"),
		StepEventsTopic:     getEnv("STEP_EVENTS_TOPIC", "step_samples"),
		RelayGroupID:        getEnv("RELAY_GROUP_ID", "wellnest-step-relay"),
		RelayServiceToken:   getEnv("RELAY_SERVICE_TOKEN", ""),
		MetricsAddress:      getEnv("METRICS_ADDRESS", ":9102"),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:           getEnv("JWT_ISSUER", "wellnest.identity"),
		ShutdownTimeout:     getDurationEnv("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	// Empty means no motion stream: sessions report the capability as unavailable.
	cfg.KafkaBrokers = splitAndTrim(getEnv("KAFKA_BROKERS", ""))
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
