package domain

import "time"

// Contact is a directory entry used to enrich recipients and resolve their
// stored time zones.
type Contact struct {
	ID        string            `json:"id"` // UUID
	TenantID  string            `json:"tenant_id"`
	UserID    *string           `json:"user_id,omitempty"`
	Email     *string           `json:"email,omitempty"`
	Phone     *string           `json:"phone,omitempty"`
	FullName  *string           `json:"full_name,omitempty"`
	Timezone  *string           `json:"timezone,omitempty"` // IANA zone identifier
	Metadata  map[string]string `json:"metadata,omitempty"` // JSONB in DB
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
