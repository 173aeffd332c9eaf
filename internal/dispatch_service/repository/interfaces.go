package repository

import (
	"context"
	"time"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

// NotificationRepository persists notification records and their terminal
// markers. The batch stat scan reads the markers this writes.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error
	// MarkSent records provider acceptance; delivery confirmation is written
	// later by the provider-integration layer.
	MarkSent(ctx context.Context, id, providerName, providerMessageID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id, errorMessage string, failedAt time.Time) error
	MarkRejected(ctx context.Context, id, reason string) error
	// CountBatchStats recomputes batch counters with a full scan of the batch's
	// items grouped by terminal markers. Read-only and idempotent.
	CountBatchStats(ctx context.Context, batchID string) (domain.BatchStats, error)
}

// BatchRepository persists batch records. Counter updates are full overwrites of
// recomputed values, never increments.
type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) (*domain.Batch, error)
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	UpdateStats(ctx context.Context, id string, stats domain.BatchStats) error
	UpdateStatus(ctx context.Context, id string, status domain.BatchStatus) error
}

// SuppressionRepository answers whether an address is suppressed for a tenant.
type SuppressionRepository interface {
	IsSuppressed(ctx context.Context, tenantID, address string) (bool, string, error)
}
