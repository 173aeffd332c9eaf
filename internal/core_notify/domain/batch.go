package domain

import "time"

// BatchStatus represents the processing state of a batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
)

// Batch groups a large submission split into authenticated chunks. The plaintext
// token is returned to the caller exactly once at creation; only its digest is
// stored. Counters are recomputed from the item list, never incremented in place.
type Batch struct {
	ID             string      `json:"id"` // public UUID
	TenantID       string      `json:"tenant_id"`
	TokenDigest    string      `json:"-"` // sha3-256 hex of the secret token
	ExpectedTotal  *int        `json:"expected_total,omitempty"`
	SentCount      int         `json:"sent_count"`
	DeliveredCount int         `json:"delivered_count"`
	FailedCount    int         `json:"failed_count"`
	Status         BatchStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// BatchStats holds the counters recomputed by a full scan of a batch's items.
type BatchStats struct {
	SentCount      int
	DeliveredCount int
	FailedCount    int
}
