package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
	dispatchApp "github.com/omnirelay/golang_services/internal/dispatch_service/app"
	"github.com/omnirelay/golang_services/internal/notification_api_service/middleware"
)

// SendHandler serves the single, broadcast and multi-send endpoints.
type SendHandler struct {
	dispatcher  *dispatchApp.Dispatcher
	enricher    dispatchApp.Enricher
	broadcaster *dispatchApp.BroadcastOrchestrator
	multisender *dispatchApp.MultiSendOrchestrator
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewSendHandler creates a SendHandler.
func NewSendHandler(
	dispatcher *dispatchApp.Dispatcher,
	enricher dispatchApp.Enricher,
	broadcaster *dispatchApp.BroadcastOrchestrator,
	multisender *dispatchApp.MultiSendOrchestrator,
	validate *validator.Validate,
	logger *slog.Logger,
) *SendHandler {
	return &SendHandler{
		dispatcher:  dispatcher,
		enricher:    enricher,
		broadcaster: broadcaster,
		multisender: multisender,
		validate:    validate,
		logger:      logger,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// mapDomainError translates the error taxonomy onto HTTP status codes.
func mapDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrBatchTokenMismatch):
		http.Error(w, "batch token mismatch", http.StatusForbidden)
	case errors.Is(err, domain.ErrAllProvidersFailed):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		logger.Error("Unhandled error in HTTP handler", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// decodeAndValidate decodes the JSON body into dto and runs struct validation.
func (h *SendHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dto any) bool {
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

// Send handles POST /api/v1/notifications: one recipient, one channel.
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant, ok := middleware.TenantFromContext(ctx)
	if !ok {
		http.Error(w, "Tenant authentication details not found", http.StatusUnauthorized)
		return
	}

	var dto SendRequestDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	channels, err := parseChannels([]string{dto.Channel})
	if err != nil {
		mapDomainError(w, h.logger, err)
		return
	}
	content := dto.Content.toDomain()
	if err := content.Validate(); err != nil {
		mapDomainError(w, h.logger, err)
		return
	}
	recipient := dto.Recipient.toDomain()
	if !recipient.HasIdentifier() {
		mapDomainError(w, h.logger, fmt.Errorf("%w: recipient has no identifier", domain.ErrConfiguration))
		return
	}
	scheduledAt, err := parseOptionalInstant(dto.ScheduledAt)
	if err != nil {
		mapDomainError(w, h.logger, err)
		return
	}

	req := &domain.ChannelSendRequest{
		ID:          uuid.NewString(),
		TenantID:    tenant.TenantID,
		Channel:     channels[0],
		Recipient:   h.enricher.Enrich(ctx, recipient, tenant.TenantID),
		Content:     content,
		ScheduledAt: scheduledAt,
	}

	result := h.dispatcher.SendToChannel(ctx, req)
	if !result.Success {
		if result.Error != nil && result.Error.Code == domain.CodeAllProvidersFailed {
			// Single sends surface the terminal aggregate as an error, unlike
			// broadcast/multi where failure is reported as data.
			mapDomainError(w, h.logger, fmt.Errorf("%w: %s", domain.ErrAllProvidersFailed, result.Error.Message))
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// Broadcast handles POST /api/v1/notifications/broadcast.
func (h *SendHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant, ok := middleware.TenantFromContext(ctx)
	if !ok {
		http.Error(w, "Tenant authentication details not found", http.StatusUnauthorized)
		return
	}

	var dto BroadcastRequestDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	channels, err := parseChannels(dto.Channels)
	if err != nil {
		mapDomainError(w, h.logger, err)
		return
	}

	result, err := h.broadcaster.Broadcast(ctx, tenant.TenantID,
		dto.Recipient.toDomain(), channels, dto.Content.toDomain(),
		dispatchApp.BroadcastOptions{
			Policy:            dispatchApp.BroadcastPolicy(dto.Policy),
			RequireAllSuccess: dto.RequireAllSuccess,
		})
	if err != nil {
		if errors.Is(err, domain.ErrRequireAllSuccess) {
			// The gate fired after all channels were attempted; the result still
			// enumerates every outcome for the caller.
			writeJSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		mapDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SendMulti handles POST /api/v1/notifications/multi.
func (h *SendHandler) SendMulti(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant, ok := middleware.TenantFromContext(ctx)
	if !ok {
		http.Error(w, "Tenant authentication details not found", http.StatusUnauthorized)
		return
	}

	var dto MultiSendRequestDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	channels, err := parseChannels(dto.Channels)
	if err != nil {
		mapDomainError(w, h.logger, err)
		return
	}
	recipients := make([]domain.Recipient, len(dto.Recipients))
	for i, rd := range dto.Recipients {
		recipients[i] = rd.toDomain()
	}

	opts := dispatchApp.MultiSendOptions{
		StopOnFirstChannelSuccess: dto.StopOnFirstChannelSuccess,
		RequireAllChannelsSuccess: dto.RequireAllChannelsSuccess,
		Sequential:                dto.Sequential,
		ScheduledAt:               dto.ScheduledAt,
	}
	if dto.Timezone != nil {
		opts.Timezone = &domain.TimezoneOptions{
			Mode:     domain.TimezoneMode(dto.Timezone.Mode),
			Timezone: dto.Timezone.Timezone,
		}
	}

	result, err := h.multisender.SendMulti(ctx, tenant.TenantID, recipients, channels, dto.Content.toDomain(), opts)
	if err != nil {
		mapDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
