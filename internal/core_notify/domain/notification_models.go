package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Channel is a notification delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelChat  Channel = "chat"
	ChannelInApp Channel = "in_app"
)

// AllChannels lists every declared channel; queue topology validation iterates this.
func AllChannels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelChat, ChannelInApp}
}

// IsValid reports whether ch is a declared channel.
func (ch Channel) IsValid() bool {
	switch ch {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelChat, ChannelInApp:
		return true
	}
	return false
}

// MessageStatus defines the possible states of a notification.
type MessageStatus string

const (
	MessageStatusQueued     MessageStatus = "queued"
	MessageStatusScheduled  MessageStatus = "scheduled"
	MessageStatusProcessing MessageStatus = "processing"
	MessageStatusSent       MessageStatus = "sent"
	MessageStatusDelivered  MessageStatus = "delivered"
	MessageStatusFailed     MessageStatus = "failed"
	MessageStatusRejected   MessageStatus = "rejected"
)

// Value implements the driver.Valuer interface for MessageStatus.
func (ms MessageStatus) Value() (driver.Value, error) {
	return string(ms), nil
}

// Scan implements the sql.Scanner interface for MessageStatus.
func (ms *MessageStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan MessageStatus: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*ms = MessageStatus(strVal)
	switch *ms {
	case MessageStatusQueued, MessageStatusScheduled, MessageStatusProcessing,
		MessageStatusSent, MessageStatusDelivered, MessageStatusFailed, MessageStatusRejected:
		return nil
	default:
		return fmt.Errorf("unknown MessageStatus value: %s", strVal)
	}
}

// Recipient identifies one delivery target. At least one identifier field must be
// populated; enrichment fills the rest from the directory where it can.
type Recipient struct {
	UserID   string            `json:"user_id,omitempty"`
	Email    string            `json:"email,omitempty"`
	Phone    string            `json:"phone,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HasIdentifier reports whether any identifier field is populated.
func (r Recipient) HasIdentifier() bool {
	return r.UserID != "" || r.Email != "" || r.Phone != ""
}

// Key returns a stable identifier used to key per-recipient maps (timezones,
// results). Preference order mirrors enrichment: user id, then email, then phone.
func (r Recipient) Key() string {
	if r.UserID != "" {
		return r.UserID
	}
	if r.Email != "" {
		return r.Email
	}
	return r.Phone
}

// MessageContent carries either a template reference plus variables, or literal
// content. Exactly one of the two forms must be set.
type MessageContent struct {
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateVars map[string]string `json:"template_vars,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body,omitempty"`
	HTML         string            `json:"html,omitempty"`
}

// HasTemplate reports whether the template form is used.
func (c MessageContent) HasTemplate() bool { return c.TemplateID != "" }

// HasLiteral reports whether the literal form is used.
func (c MessageContent) HasLiteral() bool { return c.Subject != "" || c.Body != "" || c.HTML != "" }

// Validate enforces the exactly-one-of content invariant.
func (c MessageContent) Validate() error {
	if c.HasTemplate() == c.HasLiteral() {
		return fmt.Errorf("%w: exactly one of template reference or literal content must be set", ErrConfiguration)
	}
	return nil
}

// ChannelSendRequest is one logical send on one channel for one recipient.
type ChannelSendRequest struct {
	ID            string            `json:"id"`
	TenantID      string            `json:"tenant_id"`
	Channel       Channel           `json:"channel"`
	Recipient     Recipient         `json:"recipient"`
	Content       MessageContent    `json:"content"`
	ScheduledAt   *time.Time        `json:"scheduled_at,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ProviderChain is an ordered primary+fallback provider list for one channel.
type ProviderChain struct {
	Primary   string   `json:"primary"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Names returns the full ordered provider sequence.
func (pc ProviderChain) Names() []string {
	names := make([]string, 0, 1+len(pc.Fallbacks))
	names = append(names, pc.Primary)
	names = append(names, pc.Fallbacks...)
	return names
}

// Notification is the persisted record of one channel send. Terminal markers
// (SentAt/DeliveredAt/FailedAt) are what batch stat refresh scans; delivery
// confirmation is written back by the provider-integration layer.
type Notification struct {
	ID                string         `json:"id"` // UUID
	TenantID          string         `json:"tenant_id"`
	BatchID           *string        `json:"batch_id,omitempty"`
	Channel           Channel        `json:"channel"`
	RecipientUserID   *string        `json:"recipient_user_id,omitempty"`
	RecipientEmail    *string        `json:"recipient_email,omitempty"`
	RecipientPhone    *string        `json:"recipient_phone,omitempty"`
	TemplateID        *string        `json:"template_id,omitempty"`
	Subject           *string        `json:"subject,omitempty"`
	Body              *string        `json:"body,omitempty"`
	HTML              *string        `json:"html,omitempty"`
	Status            MessageStatus  `json:"status"`
	Provider          *string        `json:"provider,omitempty"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty"`
	ErrorMessage      *string        `json:"error_message,omitempty"`
	CorrelationID     *string        `json:"correlation_id,omitempty"`
	ScheduledFor      *time.Time     `json:"scheduled_for,omitempty"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time     `json:"delivered_at,omitempty"`
	FailedAt          *time.Time     `json:"failed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
