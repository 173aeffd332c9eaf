package app

import (
	"context"
	"errors"
	"log/slog"

	coreDomain "github.com/omnirelay/golang_services/internal/core_notify/domain"
	"github.com/omnirelay/golang_services/internal/directory_service/domain"
	dispatchApp "github.com/omnirelay/golang_services/internal/dispatch_service/app"
)

// DirectoryEnricher fills missing recipient fields from the contact directory.
// It implements the dispatch layer's Enricher contract: lookup failures degrade
// to returning the input unchanged, never an error.
type DirectoryEnricher struct {
	contacts domain.ContactRepository
	logger   *slog.Logger
}

// NewDirectoryEnricher creates a DirectoryEnricher.
func NewDirectoryEnricher(contacts domain.ContactRepository, logger *slog.Logger) *DirectoryEnricher {
	return &DirectoryEnricher{
		contacts: contacts,
		logger:   logger.With("component", "directory_enricher"),
	}
}

// Enrich fills missing email/phone/user id from the directory. Identifier
// preference mirrors Recipient.Key: user id, then email, then phone.
func (e *DirectoryEnricher) Enrich(ctx context.Context, recipient coreDomain.Recipient, tenantID string) coreDomain.Recipient {
	contact, err := e.lookup(ctx, recipient, tenantID)
	if err != nil {
		if !errors.Is(err, domain.ErrContactNotFound) {
			e.logger.WarnContext(ctx, "Recipient enrichment degraded, continuing with input",
				"recipient", recipient.Key(), "error", err)
		}
		return recipient
	}

	enriched := recipient
	if enriched.UserID == "" && contact.UserID != nil {
		enriched.UserID = *contact.UserID
	}
	if enriched.Email == "" && contact.Email != nil {
		enriched.Email = *contact.Email
	}
	if enriched.Phone == "" && contact.Phone != nil {
		enriched.Phone = *contact.Phone
	}
	if contact.Timezone != nil && *contact.Timezone != "" {
		if enriched.Metadata == nil {
			enriched.Metadata = map[string]string{}
		}
		if enriched.Metadata["timezone"] == "" {
			enriched.Metadata["timezone"] = *contact.Timezone
		}
	}
	return enriched
}

func (e *DirectoryEnricher) lookup(ctx context.Context, recipient coreDomain.Recipient, tenantID string) (*domain.Contact, error) {
	switch {
	case recipient.UserID != "":
		return e.contacts.GetByUserID(ctx, tenantID, recipient.UserID)
	case recipient.Email != "":
		return e.contacts.GetByEmail(ctx, tenantID, recipient.Email)
	case recipient.Phone != "":
		return e.contacts.GetByPhone(ctx, tenantID, recipient.Phone)
	default:
		return nil, domain.ErrContactNotFound
	}
}

// DirectoryUserLookup exposes stored user records to the timezone resolver.
type DirectoryUserLookup struct {
	contacts domain.ContactRepository
	logger   *slog.Logger
}

// NewDirectoryUserLookup creates a DirectoryUserLookup.
func NewDirectoryUserLookup(contacts domain.ContactRepository, logger *slog.Logger) *DirectoryUserLookup {
	return &DirectoryUserLookup{
		contacts: contacts,
		logger:   logger.With("component", "directory_user_lookup"),
	}
}

// GetByID fetches the timezone slice of a directory record.
func (l *DirectoryUserLookup) GetByID(ctx context.Context, userID, tenantID string) (*dispatchApp.DirectoryUser, error) {
	contact, err := l.contacts.GetByUserID(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrContactNotFound) {
			return nil, nil
		}
		return nil, err
	}
	user := &dispatchApp.DirectoryUser{Metadata: contact.Metadata}
	if contact.Timezone != nil {
		user.Timezone = *contact.Timezone
	}
	return user, nil
}
