package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	dispatchApp "github.com/omnirelay/golang_services/internal/dispatch_service/app"
	"github.com/omnirelay/golang_services/internal/dispatch_service/provider"
	dispatchPg "github.com/omnirelay/golang_services/internal/dispatch_service/repository/postgres"
	"github.com/omnirelay/golang_services/internal/platform/config"
	"github.com/omnirelay/golang_services/internal/platform/database"
	"github.com/omnirelay/golang_services/internal/platform/logger"
	"github.com/omnirelay/golang_services/internal/platform/messagebroker"
)

func main() {
	cfg, err := config.Load("dispatch-worker-service")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Dispatch Worker Service starting...", "log_level", cfg.LogLevel)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, "dispatch-worker-service", appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	notificationRepo := dispatchPg.NewPgNotificationRepository(dbPool)
	suppressionRepo := dispatchPg.NewPgSuppressionRepository(dbPool)

	registry := provider.NewRegistry(appLogger)
	registry.Register("mock", provider.MockFactory)
	registry.Register("webhook", provider.WebhookFactory)
	credentials := dispatchApp.CredentialsFromConfig(cfg, registry)

	executor := dispatchApp.NewFallbackExecutor(registry, appLogger)
	subjects := dispatchApp.QueueSubjects()
	events := dispatchApp.NewNatsEventPublisher(natsClient, appLogger)

	dispatcher, err := dispatchApp.NewDispatcher(
		notificationRepo, suppressionRepo, executor,
		dispatchApp.ChainsFromConfig(cfg), credentials, subjects, natsClient, events, appLogger)
	if err != nil {
		appLogger.Error("Failed to construct dispatcher", "error", err)
		os.Exit(1)
	}

	worker := dispatchApp.NewDispatchWorker(
		dispatcher, notificationRepo, natsClient, cfg.DispatchJobTimeout, appLogger)

	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	if err := worker.StartConsuming(appCtx, subjects); err != nil {
		appLogger.Error("Failed to start NATS job consumers", "error", err)
		os.Exit(1)
	}

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quitChan
	appLogger.Info("Shutdown signal received", "signal", receivedSignal.String())

	cancelAppCtx()
	worker.StopConsuming()
	appLogger.Info("Dispatch Worker Service shut down successfully.")
}
