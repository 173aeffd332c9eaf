package domain

import "context"

// ContactRepository looks up directory contacts.
type ContactRepository interface {
	GetByUserID(ctx context.Context, tenantID, userID string) (*Contact, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*Contact, error)
	GetByPhone(ctx context.Context, tenantID, phone string) (*Contact, error)
}
