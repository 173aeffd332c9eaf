package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	batchApp "github.com/omnirelay/golang_services/internal/batch_service/app"
	"github.com/omnirelay/golang_services/internal/core_notify/domain"
	"github.com/omnirelay/golang_services/internal/notification_api_service/middleware"
)

// BatchHandler serves the batch open/chunk/stats endpoints.
type BatchHandler struct {
	coordinator *batchApp.Coordinator
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(coordinator *batchApp.Coordinator, validate *validator.Validate, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		coordinator: coordinator,
		validate:    validate,
		logger:      logger,
	}
}

func (h *BatchHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dto any) bool {
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := h.validate.StructCtx(r.Context(), dto); err != nil {
		h.logger.WarnContext(r.Context(), "Request validation failed", "error", err)
		http.Error(w, fmt.Sprintf("Validation error: %s", err.Error()), http.StatusBadRequest)
		return false
	}
	return true
}

// CreateBatch handles POST /api/v1/batches. The response carries the batch
// token; it is never retrievable again.
func (h *BatchHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant, ok := middleware.TenantFromContext(ctx)
	if !ok {
		http.Error(w, "Tenant authentication details not found", http.StatusUnauthorized)
		return
	}

	var dto CreateBatchRequestDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	batch, token, err := h.coordinator.CreateBatch(ctx, tenant.TenantID, dto.ExpectedTotal)
	if err != nil {
		mapDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateBatchResponseDTO{
		BatchID:    batch.ID,
		BatchToken: token,
	})
}

// SubmitChunk handles POST /api/v1/batches/{batchID}/chunks.
func (h *BatchHandler) SubmitChunk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID := chi.URLParam(r, "batchID")

	var dto SubmitChunkRequestDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	items := make([]batchApp.ChunkItem, 0, len(dto.Items))
	for _, itemDTO := range dto.Items {
		scheduledAt, err := parseOptionalInstant(itemDTO.ScheduledAt)
		if err != nil {
			mapDomainError(w, h.logger, err)
			return
		}
		items = append(items, batchApp.ChunkItem{
			Channel:     domain.Channel(itemDTO.Channel),
			Recipient:   itemDTO.Recipient.toDomain(),
			Content:     itemDTO.Content.toDomain(),
			ScheduledAt: scheduledAt,
		})
	}

	receipt, err := h.coordinator.SubmitChunk(ctx, batchID, dto.BatchToken, items)
	if err != nil {
		mapDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

// RefreshStats handles POST /api/v1/batches/{batchID}/stats/refresh.
func (h *BatchHandler) RefreshStats(w http.ResponseWriter, r *http.Request) {
	batch, err := h.coordinator.RefreshStats(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		mapDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// GetBatch handles GET /api/v1/batches/{batchID}.
func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.coordinator.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		mapDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}
