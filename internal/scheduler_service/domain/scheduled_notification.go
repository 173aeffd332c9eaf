package domain

import (
	"context"
	"errors"
	"time"

	coreDomain "github.com/omnirelay/golang_services/internal/core_notify/domain"
)

// ErrNoDueNotifications signals an empty poll cycle; not an error condition.
var ErrNoDueNotifications = errors.New("no due notifications")

// DueNotification is the slice of a scheduled notification the poller needs to
// enqueue its dispatch job.
type DueNotification struct {
	ID         string
	TenantID   string
	Channel    coreDomain.Channel
	RetryCount int
}

// ScheduledNotificationRepository acquires due scheduled notifications. Acquire
// must be safe under concurrent pollers: a due row is handed to exactly one
// caller and transitioned to queued atomically.
type ScheduledNotificationRepository interface {
	AcquireDue(ctx context.Context, now time.Time, limit int) ([]DueNotification, error)
	// MarkForRetry puts an acquired notification back to scheduled with a new
	// due time and retry count so a later poll retries it (used when enqueueing
	// fails).
	MarkForRetry(ctx context.Context, id string, nextAttemptAt time.Time, retryCount int, errorMessage string) error
	// MarkFailed terminally fails a notification that exhausted its retries.
	MarkFailed(ctx context.Context, id string, errorMessage string) error
}
