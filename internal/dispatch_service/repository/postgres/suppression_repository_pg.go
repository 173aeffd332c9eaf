package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnirelay/golang_services/internal/dispatch_service/repository"
)

type pgSuppressionRepository struct {
	db *pgxpool.Pool
}

// NewPgSuppressionRepository creates a SuppressionRepository for PostgreSQL.
func NewPgSuppressionRepository(db *pgxpool.Pool) repository.SuppressionRepository {
	return &pgSuppressionRepository{db: db}
}

// IsSuppressed checks the per-tenant suppression list for an address.
func (r *pgSuppressionRepository) IsSuppressed(ctx context.Context, tenantID, address string) (bool, string, error) {
	var reason string
	query := `
		SELECT COALESCE(reason, '')
		FROM suppressions
		WHERE tenant_id = $1 AND address = $2 AND is_active = TRUE
		LIMIT 1
	`
	err := r.db.QueryRow(ctx, query, tenantID, address).Scan(&reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, "", nil
		}
		return false, "", err
	}
	return true, reason, nil
}
