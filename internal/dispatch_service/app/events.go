package app

import (
	"context"
	"encoding/json"
	"log/slog"
)

// QueuePublisher publishes raw payloads to a subject. *messagebroker.NatsClient
// satisfies this.
type QueuePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NatsEventPublisher emits lifecycle events over NATS. Failures are logged and
// swallowed; telemetry must never fail a dispatch.
type NatsEventPublisher struct {
	queue  QueuePublisher
	logger *slog.Logger
}

// NewNatsEventPublisher creates a NatsEventPublisher.
func NewNatsEventPublisher(queue QueuePublisher, logger *slog.Logger) *NatsEventPublisher {
	return &NatsEventPublisher{
		queue:  queue,
		logger: logger.With("component", "event_publisher"),
	}
}

// Publish emits one fire-and-forget event on EventSubjectPrefix+event.
func (p *NatsEventPublisher) Publish(ctx context.Context, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to marshal lifecycle event payload", "event", event, "error", err)
		return
	}
	if err := p.queue.Publish(ctx, EventSubjectPrefix+event, data); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish lifecycle event", "event", event, "error", err)
	}
}
