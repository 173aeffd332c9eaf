package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omnirelay/golang_services/internal/notification_api_service/middleware"
)

// NewRouter assembles the public API router.
func NewRouter(
	sendHandler *SendHandler,
	batchHandler *BatchHandler,
	jwtSecret string,
	keys middleware.APIKeyStore,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(jwtSecret, keys, logger))

		r.Post("/notifications", sendHandler.Send)
		r.Post("/notifications/broadcast", sendHandler.Broadcast)
		r.Post("/notifications/multi", sendHandler.SendMulti)

		r.Post("/batches", batchHandler.CreateBatch)
		r.Get("/batches/{batchID}", batchHandler.GetBatch)
		r.Post("/batches/{batchID}/chunks", batchHandler.SubmitChunk)
		r.Post("/batches/{batchID}/stats/refresh", batchHandler.RefreshStats)
	})

	return r
}
