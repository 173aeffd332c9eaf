package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
	"github.com/omnirelay/golang_services/internal/dispatch_service/repository"
)

type pgNotificationRepository struct {
	db *pgxpool.Pool
}

// NewPgNotificationRepository creates a NotificationRepository for PostgreSQL.
func NewPgNotificationRepository(db *pgxpool.Pool) repository.NotificationRepository {
	return &pgNotificationRepository{db: db}
}

const notificationColumns = `
	id, tenant_id, batch_id, channel,
	recipient_user_id, recipient_email, recipient_phone,
	template_id, subject, body, html,
	status, provider, provider_message_id, error_message, correlation_id,
	scheduled_for, sent_at, delivered_at, failed_at, created_at, updated_at
`

func (r *pgNotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	query := `
		INSERT INTO notifications (id, tenant_id, batch_id, channel,
		                           recipient_user_id, recipient_email, recipient_phone,
		                           template_id, subject, body, html,
		                           status, correlation_id, scheduled_for, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.Exec(ctx, query,
		n.ID, n.TenantID, n.BatchID, n.Channel,
		n.RecipientUserID, n.RecipientEmail, n.RecipientPhone,
		n.TemplateID, n.Subject, n.Body, n.HTML,
		n.Status, n.CorrelationID, n.ScheduledFor, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *pgNotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	n := &domain.Notification{}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.TenantID, &n.BatchID, &n.Channel,
		&n.RecipientUserID, &n.RecipientEmail, &n.RecipientPhone,
		&n.TemplateID, &n.Subject, &n.Body, &n.HTML,
		&n.Status, &n.Provider, &n.ProviderMessageID, &n.ErrorMessage, &n.CorrelationID,
		&n.ScheduledFor, &n.SentAt, &n.DeliveredAt, &n.FailedAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (r *pgNotificationRepository) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	query := `UPDATE notifications SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgNotificationRepository) MarkSent(ctx context.Context, id, providerName, providerMessageID string, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = $2, provider = $3, provider_message_id = $4, sent_at = $5, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, domain.MessageStatusSent, providerName, providerMessageID, sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgNotificationRepository) MarkFailed(ctx context.Context, id, errorMessage string, failedAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = $2, error_message = $3, failed_at = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, domain.MessageStatusFailed, errorMessage, failedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgNotificationRepository) MarkRejected(ctx context.Context, id, reason string) error {
	query := `
		UPDATE notifications
		SET status = $2, error_message = $3, failed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, domain.MessageStatusRejected, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountBatchStats recomputes counters with a single full-scan aggregate over the
// batch's items, grouped by terminal markers. Never increments anything.
func (r *pgNotificationRepository) CountBatchStats(ctx context.Context, batchID string) (domain.BatchStats, error) {
	var stats domain.BatchStats
	query := `
		SELECT
			COUNT(*) FILTER (WHERE sent_at IS NOT NULL AND delivered_at IS NULL AND failed_at IS NULL),
			COUNT(*) FILTER (WHERE delivered_at IS NOT NULL),
			COUNT(*) FILTER (WHERE failed_at IS NOT NULL)
		FROM notifications
		WHERE batch_id = $1
	`
	err := r.db.QueryRow(ctx, query, batchID).Scan(
		&stats.SentCount, &stats.DeliveredCount, &stats.FailedCount,
	)
	if err != nil {
		return domain.BatchStats{}, err
	}
	return stats, nil
}
