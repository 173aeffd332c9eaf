package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
	"github.com/omnirelay/golang_services/internal/dispatch_service/repository"
)

// ItemDispatcher dispatches one chunk item through the same per-item processing
// used for a single send. *app.Dispatcher satisfies this.
type ItemDispatcher interface {
	Enqueue(ctx context.Context, req *domain.ChannelSendRequest) (*domain.Notification, error)
}

// ChunkItem is one notification inside a submitted chunk.
type ChunkItem struct {
	Channel     domain.Channel        `json:"channel"`
	Recipient   domain.Recipient      `json:"recipient"`
	Content     domain.MessageContent `json:"content"`
	ScheduledAt *time.Time            `json:"scheduled_at,omitempty"`
}

// ChunkReceipt acknowledges a submitted chunk.
type ChunkReceipt struct {
	BatchID  string   `json:"batch_id"`
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	ItemIDs  []string `json:"item_ids"`
}

// Coordinator opens batches, authenticates chunk submissions against the batch
// token, and recomputes aggregate counters idempotently.
type Coordinator struct {
	batches    repository.BatchRepository
	items      repository.NotificationRepository
	dispatcher ItemDispatcher
	logger     *slog.Logger
}

// NewCoordinator creates a batch Coordinator.
func NewCoordinator(
	batches repository.BatchRepository,
	items repository.NotificationRepository,
	dispatcher ItemDispatcher,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		batches:    batches,
		items:      items,
		dispatcher: dispatcher,
		logger:     logger.With("component", "batch_coordinator"),
	}
}

// tokenDigest returns the hex sha3-256 digest stored for a batch token. Only the
// digest is persisted; the plaintext token leaves the system exactly once.
func tokenDigest(token string) string {
	sum := sha3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// generateToken returns a fresh 256-bit opaque token in hex.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate batch token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateBatch opens a batch for a tenant and returns the batch plus its secret
// token. The token is never regenerated and never returned again.
func (c *Coordinator) CreateBatch(ctx context.Context, tenantID string, expectedTotal *int) (*domain.Batch, string, error) {
	if tenantID == "" {
		return nil, "", fmt.Errorf("%w: tenant id is required", domain.ErrConfiguration)
	}
	if expectedTotal != nil && *expectedTotal <= 0 {
		return nil, "", fmt.Errorf("%w: expected total must be positive", domain.ErrConfiguration)
	}

	token, err := generateToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	batch := &domain.Batch{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		TokenDigest:   tokenDigest(token),
		ExpectedTotal: expectedTotal,
		Status:        domain.BatchStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, err := c.batches.Create(ctx, batch)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create batch: %w", err)
	}
	c.logger.InfoContext(ctx, "Batch created", "batch_id", created.ID, "tenant_id", tenantID)
	return created, token, nil
}

// authenticate verifies a submitted token against the stored digest in constant
// time. A mismatch is a terminal authorization failure, distinct from not-found.
func authenticate(batch *domain.Batch, token string) error {
	submitted := []byte(tokenDigest(token))
	stored := []byte(batch.TokenDigest)
	if len(stored) == 0 || subtle.ConstantTimeCompare(submitted, stored) != 1 {
		return domain.ErrBatchTokenMismatch
	}
	return nil
}

// SubmitChunk authenticates and dispatches one chunk of items. Each item goes
// through the same per-item processing used for a single send.
func (c *Coordinator) SubmitChunk(ctx context.Context, batchID, token string, items []ChunkItem) (*ChunkReceipt, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: chunk contains no items", domain.ErrConfiguration)
	}

	batch, err := c.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := authenticate(batch, token); err != nil {
		c.logger.WarnContext(ctx, "Chunk submission rejected on token mismatch", "batch_id", batchID)
		return nil, err
	}

	if batch.Status == domain.BatchStatusPending {
		if err := c.batches.UpdateStatus(ctx, batch.ID, domain.BatchStatusProcessing); err != nil {
			c.logger.WarnContext(ctx, "Failed to mark batch processing", "batch_id", batch.ID, "error", err)
		}
	}

	receipt := &ChunkReceipt{BatchID: batch.ID}
	for i, item := range items {
		if !item.Channel.IsValid() || !item.Recipient.HasIdentifier() || item.Content.Validate() != nil {
			c.logger.WarnContext(ctx, "Rejecting malformed chunk item", "batch_id", batch.ID, "index", i)
			receipt.Rejected++
			continue
		}
		req := &domain.ChannelSendRequest{
			ID:          uuid.NewString(),
			TenantID:    batch.TenantID,
			Channel:     item.Channel,
			Recipient:   item.Recipient,
			Content:     item.Content,
			ScheduledAt: item.ScheduledAt,
			Metadata:    map[string]string{"batch_id": batch.ID},
		}
		record, err := c.dispatcher.Enqueue(ctx, req)
		if err != nil {
			c.logger.ErrorContext(ctx, "Failed to enqueue chunk item", "batch_id", batch.ID, "index", i, "error", err)
			receipt.Rejected++
			continue
		}
		receipt.Accepted++
		receipt.ItemIDs = append(receipt.ItemIDs, record.ID)
	}

	c.logger.InfoContext(ctx, "Chunk submitted",
		"batch_id", batch.ID, "accepted", receipt.Accepted, "rejected", receipt.Rejected)
	return receipt, nil
}

// GetBatch returns a batch by id.
func (c *Coordinator) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	return c.batches.GetByID(ctx, batchID)
}

// RefreshStats recomputes the batch counters from a full scan of its items.
// Counters are overwritten with the recomputed values, never incremented, so
// concurrent or repeated refreshes converge to the same result.
func (c *Coordinator) RefreshStats(ctx context.Context, batchID string) (*domain.Batch, error) {
	batch, err := c.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	stats, err := c.items.CountBatchStats(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute batch stats: %w", err)
	}
	if err := c.batches.UpdateStats(ctx, batchID, stats); err != nil {
		return nil, fmt.Errorf("failed to store batch stats: %w", err)
	}

	batch.SentCount = stats.SentCount
	batch.DeliveredCount = stats.DeliveredCount
	batch.FailedCount = stats.FailedCount

	if batch.ExpectedTotal != nil && stats.SentCount+stats.DeliveredCount+stats.FailedCount >= *batch.ExpectedTotal &&
		batch.Status != domain.BatchStatusCompleted {
		if err := c.batches.UpdateStatus(ctx, batchID, domain.BatchStatusCompleted); err != nil {
			c.logger.WarnContext(ctx, "Failed to mark batch completed", "batch_id", batchID, "error", err)
		} else {
			batch.Status = domain.BatchStatusCompleted
		}
	}
	return batch, nil
}
