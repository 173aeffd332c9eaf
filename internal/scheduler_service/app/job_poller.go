package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	coreDomain "github.com/omnirelay/golang_services/internal/core_notify/domain"
	dispatchApp "github.com/omnirelay/golang_services/internal/dispatch_service/app"
	"github.com/omnirelay/golang_services/internal/scheduler_service/domain"
)

var (
	jobsEnqueuedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "jobs_enqueued_total",
			Help:      "Total due notifications enqueued by the scheduler.",
		},
		[]string{"channel", "status"}, // status: "success", "error_publish_retry", "error_max_retries"
	)
	pollCycleDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scheduler",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of one poll-and-enqueue cycle.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// PollerConfig holds configuration specific to the JobPoller.
type PollerConfig struct {
	PollingInterval time.Duration
	JobBatchSize    int
	MaxRetry        int
}

// JobPoller acquires due scheduled notifications and enqueues their dispatch
// jobs onto the channel subjects.
type JobPoller struct {
	repo     domain.ScheduledNotificationRepository
	queue    dispatchApp.QueuePublisher
	subjects map[coreDomain.Channel]string
	logger   *slog.Logger
	config   PollerConfig
}

// NewJobPoller creates a JobPoller. The channel→subject table is validated so a
// misconfigured topology fails at startup, not at enqueue time.
func NewJobPoller(
	repo domain.ScheduledNotificationRepository,
	queue dispatchApp.QueuePublisher,
	subjects map[coreDomain.Channel]string,
	logger *slog.Logger,
	cfg PollerConfig,
) (*JobPoller, error) {
	if err := dispatchApp.ValidateQueueTopology(subjects); err != nil {
		return nil, err
	}
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = 10 * time.Second
	}
	if cfg.JobBatchSize <= 0 {
		cfg.JobBatchSize = 50
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}
	return &JobPoller{
		repo:     repo,
		queue:    queue,
		subjects: subjects,
		logger:   logger.With("component", "job_poller"),
		config:   cfg,
	}, nil
}

// Run polls until the context is cancelled.
func (p *JobPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollingInterval)
	defer ticker.Stop()

	p.logger.Info("Scheduler poller started",
		"interval", p.config.PollingInterval, "batch_size", p.config.JobBatchSize)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Scheduler poller stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			if _, err := p.PollAndEnqueue(ctx); err != nil {
				p.logger.Error("Poll cycle failed", "error", err)
			}
		}
	}
}

// PollAndEnqueue acquires due notifications and publishes their dispatch jobs.
// It returns how many were enqueued in this cycle.
func (p *JobPoller) PollAndEnqueue(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(pollCycleDurationHist)
	defer timer.ObserveDuration()

	due, err := p.repo.AcquireDue(ctx, time.Now().UTC(), p.config.JobBatchSize)
	if err != nil {
		if errors.Is(err, domain.ErrNoDueNotifications) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to acquire due notifications: %w", err)
	}

	p.logger.InfoContext(ctx, "Acquired due notifications", "count", len(due))

	enqueued := 0
	for _, d := range due {
		payload, err := json.Marshal(dispatchApp.DispatchJobPayload{NotificationID: d.ID})
		if err != nil {
			// Cannot happen for this payload shape; keep the row claimable.
			p.logger.ErrorContext(ctx, "Failed to marshal dispatch job", "notification_id", d.ID, "error", err)
			continue
		}
		if err := p.queue.Publish(ctx, p.subjects[d.Channel], payload); err != nil {
			p.logger.ErrorContext(ctx, "Failed to enqueue due notification",
				"notification_id", d.ID, "channel", d.Channel, "retry_count", d.RetryCount, "error", err)
			jobsEnqueuedCounter.WithLabelValues(string(d.Channel), p.retryOrFail(ctx, d, err)).Inc()
			continue
		}
		jobsEnqueuedCounter.WithLabelValues(string(d.Channel), "success").Inc()
		enqueued++
	}
	return enqueued, nil
}

// retryOrFail puts a notification that could not be enqueued back on the
// schedule with backoff, or terminally fails it once MaxRetry is exhausted.
// Returns the metric status label for the outcome.
func (p *JobPoller) retryOrFail(ctx context.Context, d domain.DueNotification, cause error) string {
	if d.RetryCount < p.config.MaxRetry {
		nextAttemptAt := time.Now().UTC().Add(retryBackoff(d.RetryCount + 1))
		p.logger.InfoContext(ctx, "Scheduling notification for retry",
			"notification_id", d.ID, "next_attempt_at", nextAttemptAt, "retry_count", d.RetryCount+1)
		if err := p.repo.MarkForRetry(ctx, d.ID, nextAttemptAt, d.RetryCount+1, cause.Error()); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark notification for retry",
				"notification_id", d.ID, "error", err)
		}
		return "error_publish_retry"
	}

	p.logger.WarnContext(ctx, "Notification failed after max retries",
		"notification_id", d.ID, "max_retry", p.config.MaxRetry, "error", cause)
	msg := fmt.Sprintf("enqueue failed after %d retries: %v", d.RetryCount, cause)
	if err := p.repo.MarkFailed(ctx, d.ID, msg); err != nil {
		p.logger.ErrorContext(ctx, "Failed to mark notification failed",
			"notification_id", d.ID, "error", err)
	}
	return "error_max_retries"
}

// retryBackoff spaces attempts out linearly: 2m, 4m, 6m...
func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 2 * time.Minute
}
