package http

import (
	"fmt"
	"time"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

// RecipientDTO mirrors the recipient identifier tuple.
type RecipientDTO struct {
	UserID   string            `json:"user_id,omitempty"`
	Email    string            `json:"email,omitempty" validate:"omitempty,email"`
	Phone    string            `json:"phone,omitempty" validate:"omitempty,e164"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (d RecipientDTO) toDomain() domain.Recipient {
	return domain.Recipient{
		UserID:   d.UserID,
		Email:    d.Email,
		Phone:    d.Phone,
		Metadata: d.Metadata,
	}
}

// ContentDTO carries either a template reference or literal content.
type ContentDTO struct {
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateVars map[string]string `json:"template_vars,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body,omitempty"`
	HTML         string            `json:"html,omitempty"`
}

func (d ContentDTO) toDomain() domain.MessageContent {
	return domain.MessageContent{
		TemplateID:   d.TemplateID,
		TemplateVars: d.TemplateVars,
		Subject:      d.Subject,
		Body:         d.Body,
		HTML:         d.HTML,
	}
}

// SendRequestDTO is a single channel send.
type SendRequestDTO struct {
	Channel     string       `json:"channel" validate:"required"`
	Recipient   RecipientDTO `json:"recipient" validate:"required"`
	Content     ContentDTO   `json:"content"`
	ScheduledAt string       `json:"scheduled_at,omitempty"`
}

// BroadcastRequestDTO fans one message out across channels for one recipient.
type BroadcastRequestDTO struct {
	Channels          []string     `json:"channels" validate:"required,min=1"`
	Recipient         RecipientDTO `json:"recipient" validate:"required"`
	Content           ContentDTO   `json:"content"`
	Policy            string       `json:"policy,omitempty" validate:"omitempty,oneof=parallel_all race"`
	RequireAllSuccess bool         `json:"require_all_success,omitempty"`
}

// TimezoneOptionsDTO selects the timezone resolution policy.
type TimezoneOptionsDTO struct {
	Mode     string `json:"mode" validate:"required,oneof=client user mixed"`
	Timezone string `json:"timezone,omitempty"`
}

// MultiSendRequestDTO fans one message out across recipients × channels.
type MultiSendRequestDTO struct {
	Recipients                []RecipientDTO      `json:"recipients" validate:"required,min=1,dive"`
	Channels                  []string            `json:"channels" validate:"required,min=1"`
	Content                   ContentDTO          `json:"content"`
	StopOnFirstChannelSuccess bool                `json:"stop_on_first_channel_success,omitempty"`
	RequireAllChannelsSuccess bool                `json:"require_all_channels_success,omitempty"`
	Sequential                bool                `json:"sequential,omitempty"`
	ScheduledAt               string              `json:"scheduled_at,omitempty"`
	Timezone                  *TimezoneOptionsDTO `json:"timezone,omitempty"`
}

// CreateBatchRequestDTO opens a batch.
type CreateBatchRequestDTO struct {
	ExpectedTotal *int `json:"expected_total,omitempty" validate:"omitempty,gt=0"`
}

// CreateBatchResponseDTO returns the batch id and its secret token. The token is
// returned here exactly once.
type CreateBatchResponseDTO struct {
	BatchID    string `json:"batch_id"`
	BatchToken string `json:"batch_token"`
}

// ChunkItemDTO is one notification inside a chunk.
type ChunkItemDTO struct {
	Channel     string       `json:"channel" validate:"required"`
	Recipient   RecipientDTO `json:"recipient" validate:"required"`
	Content     ContentDTO   `json:"content"`
	ScheduledAt string       `json:"scheduled_at,omitempty"`
}

// SubmitChunkRequestDTO submits one authenticated chunk.
type SubmitChunkRequestDTO struct {
	BatchToken string         `json:"batch_token" validate:"required"`
	Items      []ChunkItemDTO `json:"items" validate:"required,min=1,dive"`
}

// parseChannels converts and validates channel tags.
func parseChannels(tags []string) ([]domain.Channel, error) {
	channels := make([]domain.Channel, len(tags))
	for i, tag := range tags {
		ch := domain.Channel(tag)
		if !ch.IsValid() {
			return nil, fmt.Errorf("%w: unknown channel '%s'", domain.ErrConfiguration, tag)
		}
		channels[i] = ch
	}
	return channels, nil
}

// parseOptionalInstant parses an optional RFC3339 timestamp.
func parseOptionalInstant(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid scheduled_at '%s'", domain.ErrConfiguration, value)
	}
	return &t, nil
}
