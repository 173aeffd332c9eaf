package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookProvider submits notifications to a vendor's JSON webhook endpoint. One
// instance per vendor; the endpoint, API key and vendor name come from the
// decrypted credential map ("endpoint", "api_key", "name").
type WebhookProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	name       string
	endpoint   string
	apiKey     string
}

// NewWebhookProvider creates a WebhookProvider from credentials. A nil httpClient
// gets a 10 second timeout default; per-call timeouts beyond that belong to the
// caller's context.
func NewWebhookProvider(logger *slog.Logger, creds Credentials, httpClient *http.Client) *WebhookProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	name := creds["name"]
	if name == "" {
		name = "webhook"
	}
	return &WebhookProvider{
		logger:     logger.With("provider", name),
		httpClient: httpClient,
		name:       name,
		endpoint:   creds["endpoint"],
		apiKey:     creds["api_key"],
	}
}

// WebhookFactory adapts NewWebhookProvider to the registry factory signature.
func WebhookFactory(logger *slog.Logger, creds Credentials) NotificationProvider {
	return NewWebhookProvider(logger, creds, nil)
}

// webhookSendRequestBody is the JSON body posted to the vendor.
type webhookSendRequestBody struct {
	To       map[string]string `json:"to"`
	Channel  string            `json:"channel"`
	Subject  string            `json:"subject,omitempty"`
	Body     string            `json:"body,omitempty"`
	HTML     string            `json:"html,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Ref      string            `json:"ref"` // our notification id, echoed in callbacks
}

// webhookSendResponseBody maps the vendor's accepted response.
type webhookSendResponseBody struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// GetName returns the provider's registry name.
func (p *WebhookProvider) GetName() string { return p.name }

// Validate checks the provider is configured well enough to attempt a send.
func (p *WebhookProvider) Validate() bool {
	return p.endpoint != "" && p.apiKey != ""
}

// Send posts the notification to the vendor endpoint.
func (p *WebhookProvider) Send(ctx context.Context, details SendRequestDetails) (*SendResponseDetails, error) {
	timer := prometheus.NewTimer(ProviderRequestDurationHist.WithLabelValues(p.name))
	defer timer.ObserveDuration()

	p.logger.InfoContext(ctx, "WebhookProvider: Send called",
		"notification_id", details.NotificationID, "channel", details.Channel)

	to := map[string]string{}
	if details.Recipient.Email != "" {
		to["email"] = details.Recipient.Email
	}
	if details.Recipient.Phone != "" {
		to["phone"] = details.Recipient.Phone
	}
	if details.Recipient.UserID != "" {
		to["user_id"] = details.Recipient.UserID
	}

	reqBody := webhookSendRequestBody{
		To:       to,
		Channel:  string(details.Channel),
		Subject:  details.Subject,
		Body:     details.Body,
		HTML:     details.HTML,
		Metadata: details.Metadata,
		Ref:      details.NotificationID,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("webhook request to %s failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response from %s: %w", p.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.WarnContext(ctx, "Webhook provider returned non-2xx status",
			"status_code", resp.StatusCode, "notification_id", details.NotificationID)
		return &SendResponseDetails{
			ProviderStatus: fmt.Sprintf("HTTP_%d", resp.StatusCode),
			ErrorMessage:   string(respBytes),
		}, fmt.Errorf("provider %s rejected send with status %d", p.name, resp.StatusCode)
	}

	var respBody webhookSendResponseBody
	if err := json.Unmarshal(respBytes, &respBody); err != nil {
		return nil, fmt.Errorf("failed to decode webhook response from %s: %w", p.name, err)
	}

	p.logger.InfoContext(ctx, "Webhook provider accepted notification",
		"provider_msg_id", respBody.MessageID, "notification_id", details.NotificationID)
	return &SendResponseDetails{
		ProviderMessageID: respBody.MessageID,
		ProviderStatus:    respBody.Status,
	}, nil
}
