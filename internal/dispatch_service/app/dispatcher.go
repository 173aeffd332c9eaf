package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
	"github.com/omnirelay/golang_services/internal/dispatch_service/provider"
	"github.com/omnirelay/golang_services/internal/dispatch_service/repository"
)

// DispatchJobPayload is the message carried on the dispatch job subjects.
type DispatchJobPayload struct {
	NotificationID string `json:"notification_id"`
}

// notificationEvent is the payload of lifecycle events.
type notificationEvent struct {
	NotificationID string         `json:"notification_id"`
	TenantID       string         `json:"tenant_id"`
	Channel        domain.Channel `json:"channel"`
	Status         string         `json:"status"`
	Provider       string         `json:"provider,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// Dispatcher performs the per-item send used by single sends, broadcast and
// multi-send fan-outs, and batch chunk items. Immediate sends run the provider
// chain synchronously; scheduled and queued sends hand off to NATS and are
// finished by a worker running the same dispatch core.
type Dispatcher struct {
	notifications repository.NotificationRepository
	suppressions  repository.SuppressionRepository
	executor      *FallbackExecutor
	chains        map[domain.Channel]domain.ProviderChain
	credentials   map[string]provider.Credentials
	subjects      map[domain.Channel]string
	queue         QueuePublisher
	events        EventPublisher
	logger        *slog.Logger
}

// NewDispatcher creates a Dispatcher. The channel→subject table must cover every
// declared channel; construction fails fast otherwise.
func NewDispatcher(
	notifications repository.NotificationRepository,
	suppressions repository.SuppressionRepository,
	executor *FallbackExecutor,
	chains map[domain.Channel]domain.ProviderChain,
	credentials map[string]provider.Credentials,
	subjects map[domain.Channel]string,
	queue QueuePublisher,
	events EventPublisher,
	logger *slog.Logger,
) (*Dispatcher, error) {
	if err := ValidateQueueTopology(subjects); err != nil {
		return nil, err
	}
	for ch, chain := range chains {
		if !ValidateProviderChain(chain) {
			return nil, fmt.Errorf("invalid provider chain configured for channel '%s'", ch)
		}
	}
	return &Dispatcher{
		notifications: notifications,
		suppressions:  suppressions,
		executor:      executor,
		chains:        chains,
		credentials:   credentials,
		subjects:      subjects,
		queue:         queue,
		events:        events,
		logger:        logger.With("component", "dispatcher"),
	}, nil
}

// ChainFor returns the provider chain configured for a channel.
func (d *Dispatcher) ChainFor(channel domain.Channel) (domain.ProviderChain, bool) {
	chain, ok := d.chains[channel]
	return chain, ok
}

// SendToChannel persists and dispatches one channel send. Scheduled sends are
// persisted for the scheduler and acknowledged; immediate sends run the provider
// chain and report the outcome as data.
func (d *Dispatcher) SendToChannel(ctx context.Context, req *domain.ChannelSendRequest) domain.ChannelResult {
	record, err := d.createRecord(ctx, req)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to persist notification", "error", err, "channel", req.Channel)
		return domain.ChannelResult{
			Channel:   req.Channel,
			Timestamp: time.Now().UTC(),
			Error:     &domain.DispatchError{Code: domain.CodeProviderError, Message: fmt.Sprintf("failed to persist notification: %v", err)},
		}
	}

	if req.ScheduledAt != nil && req.ScheduledAt.After(time.Now()) {
		d.events.Publish(ctx, "scheduled", notificationEvent{
			NotificationID: record.ID, TenantID: record.TenantID, Channel: record.Channel,
			Status: string(domain.MessageStatusScheduled), OccurredAt: time.Now().UTC(),
		})
		return domain.ChannelResult{
			Channel:   req.Channel,
			Success:   true,
			MessageID: record.ID,
			Timestamp: time.Now().UTC(),
		}
	}

	return d.DispatchRecord(ctx, record)
}

// Enqueue persists one channel send and hands it to the queue; a dispatch worker
// finishes it through DispatchRecord. Used by batch chunk processing.
func (d *Dispatcher) Enqueue(ctx context.Context, req *domain.ChannelSendRequest) (*domain.Notification, error) {
	record, err := d.createRecord(ctx, req)
	if err != nil {
		return nil, err
	}
	if record.Status == domain.MessageStatusScheduled {
		// The scheduler will enqueue it when due.
		return record, nil
	}

	payload, err := json.Marshal(DispatchJobPayload{NotificationID: record.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dispatch job payload: %w", err)
	}
	if err := d.queue.Publish(ctx, d.subjects[record.Channel], payload); err != nil {
		return nil, fmt.Errorf("failed to enqueue dispatch job: %w", err)
	}
	d.events.Publish(ctx, "queued", notificationEvent{
		NotificationID: record.ID, TenantID: record.TenantID, Channel: record.Channel,
		Status: string(domain.MessageStatusQueued), OccurredAt: time.Now().UTC(),
	})
	return record, nil
}

// createRecord maps a ChannelSendRequest onto a persisted Notification.
func (d *Dispatcher) createRecord(ctx context.Context, req *domain.ChannelSendRequest) (*domain.Notification, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := domain.MessageStatusQueued
	if req.ScheduledAt != nil && req.ScheduledAt.After(time.Now()) {
		status = domain.MessageStatusScheduled
	}
	n := &domain.Notification{
		ID:           id,
		TenantID:     req.TenantID,
		Channel:      req.Channel,
		Status:       status,
		ScheduledFor: req.ScheduledAt,
	}
	if req.Recipient.UserID != "" {
		n.RecipientUserID = &req.Recipient.UserID
	}
	if req.Recipient.Email != "" {
		n.RecipientEmail = &req.Recipient.Email
	}
	if req.Recipient.Phone != "" {
		n.RecipientPhone = &req.Recipient.Phone
	}
	if req.Content.TemplateID != "" {
		n.TemplateID = &req.Content.TemplateID
	}
	if req.Content.Subject != "" {
		n.Subject = &req.Content.Subject
	}
	if req.Content.Body != "" {
		n.Body = &req.Content.Body
	}
	if req.Content.HTML != "" {
		n.HTML = &req.Content.HTML
	}
	if req.CorrelationID != "" {
		n.CorrelationID = &req.CorrelationID
	}
	if batchID := req.Metadata["batch_id"]; batchID != "" {
		n.BatchID = &batchID
	}
	return d.notifications.Create(ctx, n)
}

// DispatchRecord runs the provider chain for one persisted notification and
// writes the outcome back. Shared by the synchronous path and the NATS worker.
func (d *Dispatcher) DispatchRecord(ctx context.Context, record *domain.Notification) domain.ChannelResult {
	timer := time.Now()
	defer func() {
		dispatchProcessingDurationHist.WithLabelValues(string(record.Channel)).Observe(time.Since(timer).Seconds())
	}()

	result := domain.ChannelResult{
		Channel:   record.Channel,
		Timestamp: time.Now().UTC(),
	}

	recipient := recipientFromRecord(record)

	// Suppression check before any provider is contacted.
	address := suppressionAddress(record.Channel, recipient)
	if address != "" {
		suppressed, reason, err := d.suppressions.IsSuppressed(ctx, record.TenantID, address)
		if err != nil {
			d.logger.WarnContext(ctx, "Suppression check failed, continuing",
				"notification_id", record.ID, "error", err)
		} else if suppressed {
			msg := "recipient suppressed"
			if reason != "" {
				msg = fmt.Sprintf("recipient suppressed: %s", reason)
			}
			if err := d.notifications.MarkRejected(ctx, record.ID, msg); err != nil {
				d.logger.ErrorContext(ctx, "Failed to mark notification rejected", "notification_id", record.ID, "error", err)
			}
			dispatchProcessedCounter.WithLabelValues(string(record.Channel), "rejected").Inc()
			result.Error = &domain.DispatchError{Code: domain.CodeSuppressed, Message: msg}
			return result
		}
	}

	chain, ok := d.chains[record.Channel]
	if !ok || !ValidateProviderChain(chain) {
		msg := fmt.Sprintf("no valid provider chain configured for channel '%s'", record.Channel)
		d.logger.ErrorContext(ctx, "Dispatch failed on chain configuration", "notification_id", record.ID, "channel", record.Channel)
		if err := d.notifications.MarkFailed(ctx, record.ID, msg, time.Now().UTC()); err != nil {
			d.logger.ErrorContext(ctx, "Failed to mark notification failed", "notification_id", record.ID, "error", err)
		}
		dispatchProcessedCounter.WithLabelValues(string(record.Channel), "failed").Inc()
		result.Error = &domain.DispatchError{Code: domain.CodeProviderError, Message: msg}
		return result
	}

	if err := d.notifications.UpdateStatus(ctx, record.ID, domain.MessageStatusProcessing); err != nil {
		d.logger.WarnContext(ctx, "Failed to mark notification processing", "notification_id", record.ID, "error", err)
	}

	details := provider.SendRequestDetails{
		NotificationID: record.ID,
		TenantID:       record.TenantID,
		Channel:        record.Channel,
		Recipient:      recipient,
	}
	if record.Subject != nil {
		details.Subject = *record.Subject
	}
	if record.Body != nil {
		details.Body = *record.Body
	}
	if record.HTML != nil {
		details.HTML = *record.HTML
	}

	exec := d.executor.ExecuteWithFallback(ctx, record.Channel, chain, details, d.credentials)
	now := time.Now().UTC()

	if !exec.Success {
		if err := d.notifications.MarkFailed(ctx, record.ID, exec.Error.Message, now); err != nil {
			d.logger.ErrorContext(ctx, "Failed to mark notification failed", "notification_id", record.ID, "error", err)
		}
		dispatchProcessedCounter.WithLabelValues(string(record.Channel), "failed").Inc()
		d.events.Publish(ctx, "failed", notificationEvent{
			NotificationID: record.ID, TenantID: record.TenantID, Channel: record.Channel,
			Status: string(domain.MessageStatusFailed), OccurredAt: now,
		})
		result.Error = exec.Error
		return result
	}

	if err := d.notifications.MarkSent(ctx, record.ID, exec.Provider, exec.MessageID, now); err != nil {
		d.logger.ErrorContext(ctx, "Failed to mark notification sent", "notification_id", record.ID, "error", err)
	}
	dispatchProcessedCounter.WithLabelValues(string(record.Channel), "sent").Inc()
	d.events.Publish(ctx, "sent", notificationEvent{
		NotificationID: record.ID, TenantID: record.TenantID, Channel: record.Channel,
		Status: string(domain.MessageStatusSent), Provider: exec.Provider, OccurredAt: now,
	})

	result.Success = true
	result.MessageID = exec.MessageID
	result.Provider = exec.Provider
	return result
}

// recipientFromRecord rebuilds the recipient tuple from a persisted record.
func recipientFromRecord(record *domain.Notification) domain.Recipient {
	r := domain.Recipient{}
	if record.RecipientUserID != nil {
		r.UserID = *record.RecipientUserID
	}
	if record.RecipientEmail != nil {
		r.Email = *record.RecipientEmail
	}
	if record.RecipientPhone != nil {
		r.Phone = *record.RecipientPhone
	}
	return r
}

// suppressionAddress picks the address checked against the suppression list for
// a channel. Channels addressed by user id are not suppressible by address.
func suppressionAddress(channel domain.Channel, r domain.Recipient) string {
	switch channel {
	case domain.ChannelEmail:
		return r.Email
	case domain.ChannelSMS, domain.ChannelChat:
		return r.Phone
	default:
		return ""
	}
}
