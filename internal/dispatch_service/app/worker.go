package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
	"github.com/omnirelay/golang_services/internal/dispatch_service/repository"
)

// NatsSubscriber is the subset of the messagebroker client the worker consumes.
type NatsSubscriber interface {
	Subscribe(ctx context.Context, subject, queueGroup string, handler nats.MsgHandler) (*nats.Subscription, error)
}

// DispatchWorker consumes queued dispatch jobs and finishes them through the
// dispatcher's chain execution. Retry/backoff of failed jobs is the queue's
// concern, not the worker's.
type DispatchWorker struct {
	dispatcher    *Dispatcher
	notifications repository.NotificationRepository
	subscriber    NatsSubscriber
	jobTimeout    time.Duration
	logger        *slog.Logger
	subs          []*nats.Subscription
}

// NewDispatchWorker creates a DispatchWorker.
func NewDispatchWorker(
	dispatcher *Dispatcher,
	notifications repository.NotificationRepository,
	subscriber NatsSubscriber,
	jobTimeout time.Duration,
	logger *slog.Logger,
) *DispatchWorker {
	if jobTimeout <= 0 {
		jobTimeout = 60 * time.Second
	}
	return &DispatchWorker{
		dispatcher:    dispatcher,
		notifications: notifications,
		subscriber:    subscriber,
		jobTimeout:    jobTimeout,
		logger:        logger.With("component", "dispatch_worker"),
	}
}

// StartConsuming subscribes to every channel's dispatch subject.
func (w *DispatchWorker) StartConsuming(ctx context.Context, subjects map[domain.Channel]string) error {
	if err := ValidateQueueTopology(subjects); err != nil {
		return err
	}
	for _, ch := range domain.AllChannels() {
		subject := subjects[ch]
		sub, err := w.subscriber.Subscribe(ctx, subject, DispatchQueueGroup, w.handleMessage(subject))
		if err != nil {
			return fmt.Errorf("failed to subscribe to '%s': %w", subject, err)
		}
		w.subs = append(w.subs, sub)
		w.logger.Info("Dispatch consumer started", "subject", subject, "queue_group", DispatchQueueGroup)
	}
	return nil
}

func (w *DispatchWorker) handleMessage(subject string) nats.MsgHandler {
	return func(msg *nats.Msg) {
		dispatchJobsReceivedCounter.WithLabelValues(subject).Inc()

		var job DispatchJobPayload
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			w.logger.Error("Failed to unmarshal dispatch job payload", "error", err, "subject", subject)
			return
		}

		// Per-job context so a slow provider cannot wedge the consumer.
		jobCtx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
		defer cancel()

		if err := w.ProcessDispatchJob(jobCtx, job); err != nil {
			w.logger.Error("Failed to process dispatch job", "error", err, "notification_id", job.NotificationID)
		}
	}
}

// ProcessDispatchJob loads one queued notification and dispatches it. Jobs that
// already left the queued state are skipped so re-deliveries stay idempotent.
func (w *DispatchWorker) ProcessDispatchJob(ctx context.Context, job DispatchJobPayload) error {
	record, err := w.notifications.GetByID(ctx, job.NotificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.logger.Warn("Dispatch job references unknown notification", "notification_id", job.NotificationID)
			return nil
		}
		return fmt.Errorf("failed to load notification: %w", err)
	}

	if record.Status != domain.MessageStatusQueued {
		w.logger.InfoContext(ctx, "Notification already processed or in invalid state, skipping",
			"notification_id", record.ID, "status", record.Status)
		return nil
	}

	result := w.dispatcher.DispatchRecord(ctx, record)
	if !result.Success && result.Error != nil {
		// Outcome already written back; surface for logging only.
		return fmt.Errorf("dispatch failed: %s", result.Error.Message)
	}
	return nil
}

// StopConsuming unsubscribes from all dispatch subjects.
func (w *DispatchWorker) StopConsuming() {
	for _, sub := range w.subs {
		if sub != nil && sub.IsValid() {
			if err := sub.Unsubscribe(); err != nil {
				w.logger.Error("Failed to unsubscribe from NATS", "error", err, "subject", sub.Subject)
			}
		}
	}
	w.subs = nil
}
