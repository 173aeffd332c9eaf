package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	dispatchApp "github.com/omnirelay/golang_services/internal/dispatch_service/app"
	"github.com/omnirelay/golang_services/internal/platform/config"
	"github.com/omnirelay/golang_services/internal/platform/database"
	"github.com/omnirelay/golang_services/internal/platform/logger"
	"github.com/omnirelay/golang_services/internal/platform/messagebroker"
	schedulerApp "github.com/omnirelay/golang_services/internal/scheduler_service/app"
	schedulerPg "github.com/omnirelay/golang_services/internal/scheduler_service/repository/postgres"
)

func main() {
	cfg, err := config.Load("scheduler-service")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Scheduler Service starting...", "log_level", cfg.LogLevel)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, "scheduler-service", appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	scheduledRepo := schedulerPg.NewPgScheduledNotificationRepository(dbPool)

	poller, err := schedulerApp.NewJobPoller(
		scheduledRepo, natsClient, dispatchApp.QueueSubjects(), appLogger,
		schedulerApp.PollerConfig{
			PollingInterval: cfg.SchedulerPollingInterval,
			JobBatchSize:    cfg.SchedulerJobBatchSize,
			MaxRetry:        cfg.SchedulerMaxRetry,
		})
	if err != nil {
		appLogger.Error("Failed to construct job poller", "error", err)
		os.Exit(1)
	}

	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()
	go poller.Run(appCtx)

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quitChan
	appLogger.Info("Shutdown signal received", "signal", receivedSignal.String())

	cancelAppCtx()
	appLogger.Info("Scheduler Service shut down successfully.")
}
