package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	coreDomain "github.com/omnirelay/golang_services/internal/core_notify/domain"
	"github.com/omnirelay/golang_services/internal/scheduler_service/domain"
)

type pgScheduledNotificationRepository struct {
	db *pgxpool.Pool
}

// NewPgScheduledNotificationRepository creates a ScheduledNotificationRepository
// for PostgreSQL.
func NewPgScheduledNotificationRepository(db *pgxpool.Pool) domain.ScheduledNotificationRepository {
	return &pgScheduledNotificationRepository{db: db}
}

// AcquireDue claims up to limit due notifications with SKIP LOCKED so concurrent
// pollers never double-claim, flipping them to queued in the same statement.
func (r *pgScheduledNotificationRepository) AcquireDue(ctx context.Context, now time.Time, limit int) ([]domain.DueNotification, error) {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status = $2 AND scheduled_for <= $3
			ORDER BY scheduled_for
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, tenant_id, channel, retry_count
	`
	rows, err := r.db.Query(ctx, query,
		coreDomain.MessageStatusQueued, coreDomain.MessageStatusScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []domain.DueNotification
	for rows.Next() {
		var d domain.DueNotification
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Channel, &d.RetryCount); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, domain.ErrNoDueNotifications
	}
	return due, nil
}

// MarkForRetry flips an acquired notification back to scheduled with the next
// attempt time and the incremented retry count. Guarded on queued so a row a
// worker already picked up is left alone.
func (r *pgScheduledNotificationRepository) MarkForRetry(ctx context.Context, id string, nextAttemptAt time.Time, retryCount int, errorMessage string) error {
	query := `
		UPDATE notifications
		SET status = $2, scheduled_for = $3, retry_count = $4, error_message = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6
	`
	_, err := r.db.Exec(ctx, query, id,
		coreDomain.MessageStatusScheduled, nextAttemptAt, retryCount, errorMessage,
		coreDomain.MessageStatusQueued)
	return err
}

func (r *pgScheduledNotificationRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	query := `
		UPDATE notifications
		SET status = $2, error_message = $3, failed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, coreDomain.MessageStatusFailed, errorMessage)
	return err
}
