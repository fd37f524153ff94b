package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/wellnest/internal/api"
	"example.com/wellnest/internal/auth"
	"example.com/wellnest/internal/config"
	"example.com/wellnest/internal/domain"
	"example.com/wellnest/internal/logger"
	"example.com/wellnest/internal/motion"
	"example.com/wellnest/internal/trackers"
	"example.com/wellnest/internal/tracking"
	httptransport "example.com/wellnest/internal/transport/http"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("step service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	recorder, closeRecorder, err := buildRecorder(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRecorder(); err != nil {
			logger.Warn("closing recorder", zap.Error(err))
		}
	}()

	service := domain.NewService(recorder, cfg.DefaultBodyWeightKg, logger.Named("steps"))
	manager := tracking.NewManager(sourceFactory(cfg, logger), recorder, tracking.Config{
		CheckpointInterval: cfg.CheckpointInterval,
		SaveTimeout:        cfg.SaveTimeout,
		WeightKg:           cfg.DefaultBodyWeightKg,
		Detector: motion.DetectorConfig{
			Threshold: cfg.StepThreshold,
			Debounce:  cfg.StepDebounce,
			Cooldown:  cfg.StepCooldown,
		},
	}, logger.Named("tracking"))

	handler := api.NewHandler(service, manager, logger.Named("api"))
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/", api.NewRouter(handler, auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, logger.Named("http")))

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), router)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("step service listening",
			zap.String("address", cfg.HTTPAddress),
			zap.String("recorder", cfg.Recorder),
			zap.Bool("motion_stream", len(cfg.KafkaBrokers) > 0))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-shutdownCh:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	// Flush final counts for sessions still tracking.
	if err := manager.Close(); err != nil {
		logger.Warn("closing sessions", zap.Error(err))
	}
	return nil
}

// buildRecorder selects the persistence path named by cfg.Recorder. Kafka mode never posts to the
// backend directly; cmd/relay forwards the published events.
func buildRecorder(cfg config.Config, logger *zap.Logger) (domain.Recorder, func() error, error) {
	switch cfg.Recorder {
	case config.RecorderHTTP:
		return trackers.NewHTTPRecorder(cfg.BackendURL, cfg.BackendTimeout), func() error { return nil }, nil
	case config.RecorderKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, nil, fmt.Errorf("recorder %q requires KAFKA_BROKERS", cfg.Recorder)
		}
		producer := trackers.NewKafkaProducer(trackers.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			WriteTimeout: cfg.BackendTimeout,
			Logger:       logger.Named("producer"),
		})
		return trackers.NewKafkaRecorder(producer, cfg.StepEventsTopic), producer.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown recorder %q", cfg.Recorder)
	}
}

func sourceFactory(cfg config.Config, logger *zap.Logger) tracking.SourceFactory {
	kafkaCfg := motion.KafkaConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.MotionTopic,
		GroupPrefix: cfg.MotionGroupPrefix,
	}
	return func(userID string) motion.Source {
		return motion.NewKafkaSource(kafkaCfg, userID, motion.WithLogger(logger.Named("motion")))
	}
}
