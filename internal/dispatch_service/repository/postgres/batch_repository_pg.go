package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
	"github.com/omnirelay/golang_services/internal/dispatch_service/repository"
)

type pgBatchRepository struct {
	db *pgxpool.Pool
}

// NewPgBatchRepository creates a BatchRepository for PostgreSQL.
func NewPgBatchRepository(db *pgxpool.Pool) repository.BatchRepository {
	return &pgBatchRepository{db: db}
}

func (r *pgBatchRepository) Create(ctx context.Context, b *domain.Batch) (*domain.Batch, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	query := `
		INSERT INTO batches (id, tenant_id, token_digest, expected_total,
		                     sent_count, delivered_count, failed_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		b.ID, b.TenantID, b.TokenDigest, b.ExpectedTotal,
		b.SentCount, b.DeliveredCount, b.FailedCount, b.Status, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, domain.ErrDuplicateEntry
		}
		return nil, err
	}
	return b, nil
}

func (r *pgBatchRepository) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	b := &domain.Batch{}
	query := `
		SELECT id, tenant_id, token_digest, expected_total,
		       sent_count, delivered_count, failed_count, status, created_at, updated_at
		FROM batches WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.TenantID, &b.TokenDigest, &b.ExpectedTotal,
		&b.SentCount, &b.DeliveredCount, &b.FailedCount, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// UpdateStats overwrites the counters with recomputed values.
func (r *pgBatchRepository) UpdateStats(ctx context.Context, id string, stats domain.BatchStats) error {
	query := `
		UPDATE batches
		SET sent_count = $2, delivered_count = $3, failed_count = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, stats.SentCount, stats.DeliveredCount, stats.FailedCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgBatchRepository) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus) error {
	query := `UPDATE batches SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
