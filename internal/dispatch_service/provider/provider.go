package provider

import (
	"context"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

// Credentials is a decrypted provider credential map. Decryption happens upstream;
// this layer only consumes plaintext key/value pairs.
type Credentials map[string]string

// SendRequestDetails holds the data a provider needs for one send.
type SendRequestDetails struct {
	NotificationID string // our system's notification id
	TenantID       string
	Channel        domain.Channel
	Recipient      domain.Recipient
	Subject        string
	Body           string
	HTML           string
	Metadata       map[string]string
}

// SendResponseDetails holds the outcome of a send attempt from a provider.
type SendResponseDetails struct {
	ProviderMessageID string // the id returned by the provider
	ProviderStatus    string
	ErrorMessage      string
}

// NotificationProvider is a concrete integration capable of sending on one channel.
type NotificationProvider interface {
	// GetName returns the provider's registry name (e.g. "sendgrid", "mock").
	GetName() string
	// Validate reports whether the provider is usable with its configured
	// credentials. A false return is treated as a failed attempt by the
	// fallback executor; Send is not called.
	Validate() bool
	Send(ctx context.Context, details SendRequestDetails) (*SendResponseDetails, error)
}
