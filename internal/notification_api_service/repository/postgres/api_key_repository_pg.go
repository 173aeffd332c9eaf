package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnirelay/golang_services/internal/notification_api_service/middleware"
)

type pgAPIKeyStore struct {
	db *pgxpool.Pool
}

// NewPgAPIKeyStore creates an APIKeyStore for PostgreSQL.
func NewPgAPIKeyStore(db *pgxpool.Pool) middleware.APIKeyStore {
	return &pgAPIKeyStore{db: db}
}

func (s *pgAPIKeyStore) GetTenantByKeyDigest(ctx context.Context, digest string) (*middleware.AuthenticatedTenant, error) {
	tenant := &middleware.AuthenticatedTenant{}
	query := `
		SELECT tenant_id, id, is_active
		FROM api_keys
		WHERE key_digest = $1
	`
	err := s.db.QueryRow(ctx, query, digest).Scan(&tenant.TenantID, &tenant.Subject, &tenant.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tenant, nil
}
