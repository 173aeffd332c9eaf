package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
	dispatchApp "github.com/omnirelay/golang_services/internal/dispatch_service/app"
	"github.com/omnirelay/golang_services/internal/dispatch_service/provider"
	"github.com/omnirelay/golang_services/internal/notification_api_service/middleware"
)

type stubNotificationRepo struct{}

func (stubNotificationRepo) Create(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
	return n, nil
}
func (stubNotificationRepo) GetByID(context.Context, string) (*domain.Notification, error) {
	return nil, domain.ErrNotFound
}
func (stubNotificationRepo) UpdateStatus(context.Context, string, domain.MessageStatus) error {
	return nil
}
func (stubNotificationRepo) MarkSent(context.Context, string, string, string, time.Time) error {
	return nil
}
func (stubNotificationRepo) MarkFailed(context.Context, string, string, time.Time) error { return nil }
func (stubNotificationRepo) MarkRejected(context.Context, string, string) error          { return nil }
func (stubNotificationRepo) CountBatchStats(context.Context, string) (domain.BatchStats, error) {
	return domain.BatchStats{}, nil
}

type stubSuppressionRepo struct{}

func (stubSuppressionRepo) IsSuppressed(context.Context, string, string) (bool, string, error) {
	return false, "", nil
}

type stubQueue struct{}

func (stubQueue) Publish(context.Context, string, []byte) error { return nil }

type stubEvents struct{}

func (stubEvents) Publish(context.Context, string, any) {}

type passthroughEnricher struct{}

func (passthroughEnricher) Enrich(_ context.Context, r domain.Recipient, _ string) domain.Recipient {
	return r
}

// newSendHandler builds a SendHandler over a single mock provider chain whose
// send outcome is controlled by failSend.
func newSendHandler(t *testing.T, failSend bool) *SendHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := provider.NewRegistry(logger)
	registry.Register("mock", provider.MockFactory)
	creds := map[string]provider.Credentials{"mock": {"name": "mock"}}
	if failSend {
		creds["mock"]["fail_send"] = "true"
	}
	chains := make(map[domain.Channel]domain.ProviderChain)
	for _, ch := range domain.AllChannels() {
		chains[ch] = domain.ProviderChain{Primary: "mock"}
	}

	dispatcher, err := dispatchApp.NewDispatcher(
		stubNotificationRepo{}, stubSuppressionRepo{},
		dispatchApp.NewFallbackExecutor(registry, logger),
		chains, creds, dispatchApp.QueueSubjects(),
		stubQueue{}, stubEvents{}, logger)
	require.NoError(t, err)

	return NewSendHandler(dispatcher, passthroughEnricher{}, nil, nil, validator.New(), logger)
}

func postSend(h *SendHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader(body))
	tenant := middleware.AuthenticatedTenant{TenantID: "tenant-1", Subject: "user-1", IsActive: true}
	req = req.WithContext(context.WithValue(req.Context(), middleware.AuthenticatedTenantContextKey, tenant))
	rec := httptest.NewRecorder()
	h.Send(rec, req)
	return rec
}

func TestSend_AcceptedOnProviderSuccess(t *testing.T) {
	h := newSendHandler(t, false)

	rec := postSend(h, `{"channel":"email","recipient":{"email":"user@example.com"},"content":{"subject":"hi","body":"hello"}}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var result domain.ChannelResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "mock", result.Provider)
}

func TestSend_AllProvidersFailedIsBadGateway(t *testing.T) {
	h := newSendHandler(t, true)

	rec := postSend(h, `{"channel":"email","recipient":{"email":"user@example.com"},"content":{"body":"hello"}}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "all providers failed")
	assert.Contains(t, rec.Body.String(), "mock")
}

func TestSend_UnknownChannelIsBadRequest(t *testing.T) {
	h := newSendHandler(t, false)

	rec := postSend(h, `{"channel":"carrier_pigeon","recipient":{"email":"user@example.com"},"content":{"body":"hello"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
