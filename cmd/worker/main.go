package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/benvon/smart-autotrader/internal/config"
	"github.com/benvon/smart-autotrader/internal/database"
	"github.com/benvon/smart-autotrader/internal/logger"
	"github.com/benvon/smart-autotrader/internal/queue"
	"github.com/benvon/smart-autotrader/internal/workers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	devFlag := flag.Bool("dev", false, "Use the human-readable console logger")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required for the worker")
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(*devFlag, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Duration("session_retention", cfg.SessionRetention),
		zap.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	writer := workers.NewHistoryWriter(
		database.NewChatHistoryRepository(db),
		database.NewSessionRepository(db),
		jobQueue,
		workers.HistoryWriterConfig{
			SessionRetention: cfg.SessionRetention,
			Concurrency:      max(cfg.WorkerConcurrency, cfg.RabbitMQPrefetch),
		},
		zapLogger,
	)
	sweeper := queue.NewDLQSweeper(jobQueue, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return writer.Run(gctx) })
	g.Go(func() error {
		return workers.ScheduleCleanup(gctx, jobQueue, cfg.SessionCleanupInterval, zapLogger)
	})
	g.Go(func() error { return sweeper.Run(gctx) })

	zapLogger.Info("worker_started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("worker_stopped_with_error", zap.Error(err))
		return
	}
	zapLogger.Info("worker_stopped")
}
