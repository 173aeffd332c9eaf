package app

import (
	"context"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

// ChannelSender performs one channel send end to end (persist, dispatch through
// the provider chain or queue, write back the outcome). The orchestrators fan
// out over this so they stay independent of transport and persistence.
type ChannelSender interface {
	SendToChannel(ctx context.Context, req *domain.ChannelSendRequest) domain.ChannelResult
}

// Enricher fills missing recipient fields from a directory. It must degrade
// gracefully: on lookup failure the input recipient is returned unchanged.
type Enricher interface {
	Enrich(ctx context.Context, recipient domain.Recipient, tenantID string) domain.Recipient
}

// DirectoryUser is the slice of a directory record timezone resolution needs.
type DirectoryUser struct {
	Timezone string
	Metadata map[string]string
}

// UserDirectory looks up stored user records for timezone resolution.
type UserDirectory interface {
	GetByID(ctx context.Context, userID, tenantID string) (*DirectoryUser, error)
}

// EventPublisher emits fire-and-forget lifecycle events ("queued", "sent",
// "failed"). Publish failures must never fail the caller's dispatch.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload any)
}
