package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	batchApp "github.com/omnirelay/golang_services/internal/batch_service/app"
	directoryApp "github.com/omnirelay/golang_services/internal/directory_service/app"
	directoryPg "github.com/omnirelay/golang_services/internal/directory_service/repository/postgres"
	dispatchApp "github.com/omnirelay/golang_services/internal/dispatch_service/app"
	"github.com/omnirelay/golang_services/internal/dispatch_service/provider"
	dispatchPg "github.com/omnirelay/golang_services/internal/dispatch_service/repository/postgres"
	apiPg "github.com/omnirelay/golang_services/internal/notification_api_service/repository/postgres"
	apiHttp "github.com/omnirelay/golang_services/internal/notification_api_service/transport/http"
	"github.com/omnirelay/golang_services/internal/platform/config"
	"github.com/omnirelay/golang_services/internal/platform/database"
	"github.com/omnirelay/golang_services/internal/platform/logger"
	"github.com/omnirelay/golang_services/internal/platform/messagebroker"
)

func main() {
	cfg, err := config.Load("notification-api-service")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Notification API Service starting...", "log_level", cfg.LogLevel)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, "notification-api-service", appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	notificationRepo := dispatchPg.NewPgNotificationRepository(dbPool)
	suppressionRepo := dispatchPg.NewPgSuppressionRepository(dbPool)
	batchRepo := dispatchPg.NewPgBatchRepository(dbPool)
	contactRepo := directoryPg.NewPgContactRepository(dbPool)
	apiKeyStore := apiPg.NewPgAPIKeyStore(dbPool)

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

	enricher := directoryApp.NewDirectoryEnricher(contactRepo, appLogger)
	userLookup := directoryApp.NewDirectoryUserLookup(contactRepo, appLogger)
	timezones := dispatchApp.NewTimezoneResolver(userLookup, appLogger)
	broadcaster := dispatchApp.NewBroadcastOrchestrator(dispatcher, enricher, appLogger)
	multisender := dispatchApp.NewMultiSendOrchestrator(broadcaster, enricher, timezones, appLogger)
	coordinator := batchApp.NewCoordinator(batchRepo, notificationRepo, dispatcher, appLogger)

	validate := validator.New()
	sendHandler := apiHttp.NewSendHandler(dispatcher, enricher, broadcaster, multisender, validate, appLogger)
	batchHandler := apiHttp.NewBatchHandler(coordinator, validate, appLogger)
	router := apiHttp.NewRouter(sendHandler, batchHandler, cfg.JWTAccessSecret, apiKeyStore, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.NotificationAPIPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLogger.Info("HTTP server listening", "port", cfg.NotificationAPIPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quitChan
	appLogger.Info("Shutdown signal received", "signal", receivedSignal.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}
	appLogger.Info("Notification API Service shut down successfully.")
}
