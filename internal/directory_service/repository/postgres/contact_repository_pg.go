package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnirelay/golang_services/internal/directory_service/domain"
)

type pgContactRepository struct {
	db *pgxpool.Pool
}

// NewPgContactRepository creates a ContactRepository for PostgreSQL.
func NewPgContactRepository(db *pgxpool.Pool) domain.ContactRepository {
	return &pgContactRepository{db: db}
}

const contactColumns = `
	id, tenant_id, user_id, email, phone, full_name, timezone, metadata, is_active, created_at, updated_at
`

func (r *pgContactRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.TenantID, &c.UserID, &c.Email, &c.Phone, &c.FullName,
		&c.Timezone, &c.Metadata, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContactNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *pgContactRepository) GetByUserID(ctx context.Context, tenantID, userID string) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id = $1 AND user_id = $2 AND is_active = TRUE`
	return r.getOne(ctx, query, tenantID, userID)
}

func (r *pgContactRepository) GetByEmail(ctx context.Context, tenantID, email string) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id = $1 AND email = $2 AND is_active = TRUE`
	return r.getOne(ctx, query, tenantID, email)
}

func (r *pgContactRepository) GetByPhone(ctx context.Context, tenantID, phone string) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id = $1 AND phone = $2 AND is_active = TRUE`
	return r.getOne(ctx, query, tenantID, phone)
}
