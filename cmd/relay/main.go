package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/wellnest/internal/config"
	"example.com/wellnest/internal/logger"
	"example.com/wellnest/internal/relay"
	"example.com/wellnest/internal/trackers"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		zlog.Fatal("relay requires KAFKA_BROKERS")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 2 * time.Second}
	go func() {
		zlog.Info("relay metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Warn("metrics server error", zap.Error(err))
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.RelayGroupID,
		Topic:           cfg.StepEventsTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		ReadLagInterval: -1,
	})
	target := trackers.NewHTTPRecorder(cfg.BackendURL, cfg.BackendTimeout)
	proc := relay.NewProcessor(reader, target,
		relay.WithLogger(zlog.Named("relay")),
		relay.WithServiceToken(cfg.RelayServiceToken))

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer reader.Close()

		zlog.Info("relay started", zap.String("topic", cfg.StepEventsTopic), zap.String("group", cfg.RelayGroupID))
		if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("relay stopped with error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	zlog.Info("relay shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("metrics server shutdown error", zap.Error(err))
	}
	<-done
}
