package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

// BroadcastPolicy selects the stop rule for a per-recipient channel fan-out.
type BroadcastPolicy string

const (
	// PolicyParallelAll dispatches every channel concurrently and collects every
	// outcome regardless of individual failures.
	PolicyParallelAll BroadcastPolicy = "parallel_all"
	// PolicyRace dispatches every channel concurrently and returns the first
	// success; if none succeeds the full collected outcome list is returned so
	// each failure stays inspectable.
	PolicyRace BroadcastPolicy = "race"
)

// BroadcastOptions tunes one broadcast call.
type BroadcastOptions struct {
	Policy BroadcastPolicy
	// RequireAllSuccess raises ErrRequireAllSuccess after all channels were
	// attempted if any failed. A post-hoc gate, not a short-circuit; it forces
	// full collection even under PolicyRace.
	RequireAllSuccess bool
}

// BroadcastOrchestrator sends one logical message to one recipient across N
// channels concurrently.
type BroadcastOrchestrator struct {
	sender   ChannelSender
	enricher Enricher
	logger   *slog.Logger
}

// NewBroadcastOrchestrator creates a BroadcastOrchestrator.
func NewBroadcastOrchestrator(sender ChannelSender, enricher Enricher, logger *slog.Logger) *BroadcastOrchestrator {
	return &BroadcastOrchestrator{
		sender:   sender,
		enricher: enricher,
		logger:   logger.With("component", "broadcast_orchestrator"),
	}
}

// validateBroadcastInput holds the up-front configuration checks shared by
// Broadcast and the multi-send orchestrator.
func validateBroadcastInput(recipient domain.Recipient, channels []domain.Channel, content domain.MessageContent) error {
	if len(channels) == 0 {
		return fmt.Errorf("%w: at least one channel is required", domain.ErrConfiguration)
	}
	if !recipient.HasIdentifier() {
		return fmt.Errorf("%w: recipient has no identifier", domain.ErrConfiguration)
	}
	if err := content.Validate(); err != nil {
		return err
	}
	for _, ch := range channels {
		if !ch.IsValid() {
			return fmt.Errorf("%w: unknown channel '%s'", domain.ErrConfiguration, ch)
		}
	}
	return nil
}

// Broadcast fans one message out across channels for a single recipient.
// Configuration problems surface as errors before any dispatch; per-channel
// failures are reported as data inside the result.
func (o *BroadcastOrchestrator) Broadcast(
	ctx context.Context,
	tenantID string,
	recipient domain.Recipient,
	channels []domain.Channel,
	content domain.MessageContent,
	opts BroadcastOptions,
) (*domain.BroadcastResult, error) {
	if err := validateBroadcastInput(recipient, channels, content); err != nil {
		return nil, err
	}

	// Enrich once; all channels share the enriched recipient.
	enriched := o.enricher.Enrich(ctx, recipient, tenantID)
	return o.fanOut(ctx, tenantID, enriched, channels, content, opts, nil)
}

// fanOut dispatches one already-enriched recipient across channels and applies
// the stop rule. All channels share one correlation id so downstream consumers
// can group results.
func (o *BroadcastOrchestrator) fanOut(
	ctx context.Context,
	tenantID string,
	enriched domain.Recipient,
	channels []domain.Channel,
	content domain.MessageContent,
	opts BroadcastOptions,
	scheduledAt *time.Time,
) (*domain.BroadcastResult, error) {
	if opts.Policy == "" {
		opts.Policy = PolicyParallelAll
	}
	correlationID := uuid.NewString()

	requests := make([]*domain.ChannelSendRequest, len(channels))
	for i, ch := range channels {
		requests[i] = &domain.ChannelSendRequest{
			ID:            uuid.NewString(),
			TenantID:      tenantID,
			Channel:       ch,
			Recipient:     enriched,
			Content:       content,
			ScheduledAt:   scheduledAt,
			CorrelationID: correlationID,
		}
	}

	results := make([]domain.ChannelResult, len(channels))
	firstSuccess := make(chan domain.ChannelResult, len(channels))
	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res := o.sendOne(ctx, requests[idx])
			results[idx] = res
			if res.Success {
				firstSuccess <- res
			}
		}(i)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if opts.Policy == PolicyRace && !opts.RequireAllSuccess {
		select {
		case winner := <-firstSuccess:
			// Remaining channels keep running and land in their slots; the
			// caller gets the winning result immediately.
			o.logger.InfoContext(ctx, "Race broadcast won",
				"correlation_id", correlationID, "channel", winner.Channel, "provider", winner.Provider)
			return &domain.BroadcastResult{
				CorrelationID: correlationID,
				Success:       true,
				SuccessCount:  1,
				Results:       []domain.ChannelResult{winner},
			}, nil
		case <-done:
			// No channel succeeded; fall through to return every collected
			// outcome, including the raced failures.
		}
	} else {
		<-done
	}

	result := &domain.BroadcastResult{
		CorrelationID: correlationID,
		Results:       results,
	}
	for _, r := range results {
		if r.Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}
	result.Success = result.SuccessCount > 0

	if opts.RequireAllSuccess && result.FailureCount > 0 {
		return result, fmt.Errorf("%w: %d of %d channels failed",
			domain.ErrRequireAllSuccess, result.FailureCount, len(channels))
	}
	return result, nil
}

// sendOne dispatches a single channel request, converting panics from the sender
// into a failed ChannelResult so sibling channels are never aborted.
func (o *BroadcastOrchestrator) sendOne(ctx context.Context, req *domain.ChannelSendRequest) (res domain.ChannelResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.ErrorContext(ctx, "Channel send panicked",
				"channel", req.Channel, "correlation_id", req.CorrelationID, "panic", r)
			res = domain.ChannelResult{
				Channel:   req.Channel,
				Timestamp: time.Now().UTC(),
				Error: &domain.DispatchError{
					Code:    domain.CodeDispatchPanic,
					Message: fmt.Sprintf("channel dispatch panicked: %v", r),
				},
			}
		}
	}()
	return o.sender.SendToChannel(ctx, req)
}
