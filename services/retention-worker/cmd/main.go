package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/database"
	kafkautils "github.com/nimeshabuddhika/churnshield/pkg/kafka"
	"github.com/nimeshabuddhika/churnshield/pkg/repositories"
	"github.com/nimeshabuddhika/churnshield/services/retention-worker/configs"
	"github.com/nimeshabuddhika/churnshield/services/retention-worker/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// main runs the retention worker: prediction events in, retention interventions out.
func main() {
	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync()

	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed_to_load_config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, disconnect, err := database.New(ctx, logger, database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		ReadDSNs:   []string{cfg.ReplicaDbAddr},
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	})
	if err != nil {
		logger.Fatal("failed_to_init_db", zap.Error(err))
	}
	defer disconnect()
	if err := database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		logger.Fatal("failed_to_run_migrations", zap.Error(err))
	}

	err = kafkautils.InitKafkaTopics(ctx, logger, kafkautils.KafkaConfig{
		BootstrapServers: cfg.KafkaBrokers,
		Topics: []kafkautils.TopicConfig{
			{Topic: cfg.KafkaTopic, NumPartitions: int(cfg.KafkaPartition), ReplicationFactor: 1},
			{
				Topic:             cfg.KafkaDLQTopic,
				NumPartitions:     1,
				ReplicationFactor: 1,
				Config: map[string]string{
					"cleanup.policy": "delete",
					"retention.ms":   fmt.Sprintf("%d", cfg.KafkaDLQRetention.Milliseconds()),
				},
			},
		},
	})
	if err != nil {
		logger.Fatal("failed_to_init_kafka_topics", zap.Error(err))
	}

	consumer, err := services.NewKafkaPredictionConsumer(services.KafkaPredictionConsumerConfig{
		Logger: logger,
		Config: cfg,
		Service: services.NewInterventionService(services.InterventionServiceConfig{
			Logger:           logger,
			Repo:             repositories.NewInterventionRepository(db),
			MinRisk:          pkg.RiskLevel(cfg.InterventionRisk),
			ResolveOnLowRisk: cfg.ResolveOnLowRisk,
			RetryMaxElapsed:  cfg.StoreRetryMaxElapsed,
		}),
	})
	if err != nil {
		logger.Fatal("failed_to_create_consumer", zap.Error(err))
	}
	closeConsumer, err := consumer.Start(ctx)
	if err != nil {
		logger.Fatal("failed_to_start_consumer", zap.Error(err))
	}

	// metrics and liveness only; the worker has no API
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", zap.Error(err))
		}
	}()
	logger.Info("retention_worker_started", zap.String("metrics_addr", cfg.MetricsAddr))

	<-ctx.Done()
	logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	closeConsumer()
	logger.Info("retention_worker_stopped")
}
