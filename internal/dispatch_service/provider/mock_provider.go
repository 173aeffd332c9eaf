package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a configurable test implementation of NotificationProvider.
type MockProvider struct {
	logger         *slog.Logger
	Name           string
	FailValidate   bool          // report the provider as unusable
	FailSend       bool          // simulate a send failure
	SimulatedDelay time.Duration // simulate network latency
}

// NewMockProvider creates a MockProvider with the given name.
func NewMockProvider(logger *slog.Logger, name string, failSend bool, delay time.Duration) *MockProvider {
	return &MockProvider{
		logger:         logger.With("provider", name),
		Name:           name,
		FailSend:       failSend,
		SimulatedDelay: delay,
	}
}

// MockFactory adapts NewMockProvider to the registry factory signature.
func MockFactory(logger *slog.Logger, creds Credentials) NotificationProvider {
	name := creds["name"]
	if name == "" {
		name = "mock"
	}
	return NewMockProvider(logger, name, creds["fail_send"] == "true", 0)
}

// GetName returns the provider's configured name.
func (p *MockProvider) GetName() string { return p.Name }

// Validate honors the FailValidate toggle.
func (p *MockProvider) Validate() bool { return !p.FailValidate }

// Send simulates a provider send.
func (p *MockProvider) Send(ctx context.Context, details SendRequestDetails) (*SendResponseDetails, error) {
	p.logger.InfoContext(ctx, "MockProvider: Send called",
		"notification_id", details.NotificationID,
		"channel", details.Channel,
		"recipient", details.Recipient.Key())

	if p.SimulatedDelay > 0 {
		time.Sleep(p.SimulatedDelay)
	}

	if p.FailSend {
		errMsg := "mock provider simulated send failure"
		p.logger.WarnContext(ctx, errMsg, "notification_id", details.NotificationID)
		return &SendResponseDetails{
			ProviderStatus: "FAILED_MOCK",
			ErrorMessage:   errMsg,
		}, errors.New(errMsg)
	}

	providerMsgID := "mock-" + uuid.NewString()
	return &SendResponseDetails{
		ProviderMessageID: providerMsgID,
		ProviderStatus:    "SENT_MOCK_OK",
	}, nil
}
