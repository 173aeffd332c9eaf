package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

// MultiSendOptions tunes one multi-send call.
type MultiSendOptions struct {
	// StopOnFirstChannelSuccess runs each recipient's channels under PolicyRace.
	StopOnFirstChannelSuccess bool
	// RequireAllChannelsSuccess gates each recipient's result on full channel
	// success. Mutually exclusive with StopOnFirstChannelSuccess.
	RequireAllChannelsSuccess bool
	// Sequential processes recipients one after another; a recipient's full
	// channel set resolves before the next recipient starts.
	Sequential bool
	// ScheduledAt is an optional RFC3339 base instant, converted into each
	// recipient's resolved zone before dispatch.
	ScheduledAt string
	// Timezone selects the resolution policy when ScheduledAt is set.
	Timezone *domain.TimezoneOptions
}

// MultiSendOrchestrator extends the channel fan-out across M recipients,
// each with the same per-user policy but independent outcomes.
type MultiSendOrchestrator struct {
	broadcast *BroadcastOrchestrator
	enricher  Enricher
	timezones *TimezoneResolver
	logger    *slog.Logger
}

// NewMultiSendOrchestrator creates a MultiSendOrchestrator.
func NewMultiSendOrchestrator(
	broadcast *BroadcastOrchestrator,
	enricher Enricher,
	timezones *TimezoneResolver,
	logger *slog.Logger,
) *MultiSendOrchestrator {
	return &MultiSendOrchestrator{
		broadcast: broadcast,
		enricher:  enricher,
		timezones: timezones,
		logger:    logger.With("component", "multisend_orchestrator"),
	}
}

// SendMulti fans one message out across recipients × channels. A recipient's
// failure never aborts its siblings; overall success means at least one
// recipient achieved at least one channel success.
func (o *MultiSendOrchestrator) SendMulti(
	ctx context.Context,
	tenantID string,
	recipients []domain.Recipient,
	channels []domain.Channel,
	content domain.MessageContent,
	opts MultiSendOptions,
) (*domain.MultiResult, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrConfiguration)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: at least one channel is required", domain.ErrConfiguration)
	}
	if opts.StopOnFirstChannelSuccess && opts.RequireAllChannelsSuccess {
		return nil, fmt.Errorf("%w: stopOnFirstChannelSuccess and requireAllChannelsSuccess are mutually exclusive", domain.ErrConfiguration)
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}
	for _, ch := range channels {
		if !ch.IsValid() {
			return nil, fmt.Errorf("%w: unknown channel '%s'", domain.ErrConfiguration, ch)
		}
	}
	for _, r := range recipients {
		if !r.HasIdentifier() {
			return nil, fmt.Errorf("%w: recipient has no identifier", domain.ErrConfiguration)
		}
	}
	if opts.ScheduledAt != "" {
		if _, err := CalculateScheduledTime(opts.ScheduledAt, "UTC"); err != nil {
			return nil, err
		}
	}

	// Enrich all recipients concurrently before any dispatch.
	enriched := make([]domain.Recipient, len(recipients))
	var enrichWG sync.WaitGroup
	for i := range recipients {
		enrichWG.Add(1)
		go func(idx int) {
			defer enrichWG.Done()
			enriched[idx] = o.enricher.Enrich(ctx, recipients[idx], tenantID)
		}(i)
	}
	enrichWG.Wait()

	// Resolve one zone per recipient when scheduling applies. Unresolved
	// recipients fall back to UTC rather than aborting the batch; an invalid
	// client-supplied zone is still a configuration error.
	zones := map[string]string{}
	if opts.ScheduledAt != "" && opts.Timezone != nil {
		resolved, err := o.timezones.ResolveBatch(ctx, enriched, tenantID, *opts.Timezone)
		if err != nil {
			if errors.Is(err, domain.ErrConfiguration) {
				return nil, err
			}
			o.logger.WarnContext(ctx, "Batch timezone resolution degraded, using UTC", "error", err)
		} else {
			zones = resolved
		}
	}

	perUser := BroadcastOptions{
		Policy:            PolicyParallelAll,
		RequireAllSuccess: opts.RequireAllChannelsSuccess,
	}
	if opts.StopOnFirstChannelSuccess {
		perUser.Policy = PolicyRace
	}

	userResults := make([]domain.UserChannelResult, len(enriched))
	process := func(idx int) {
		userResults[idx] = o.processRecipient(ctx, tenantID, enriched[idx], channels, content, perUser, opts, zones)
	}

	if opts.Sequential {
		for i := range enriched {
			process(i)
		}
	} else {
		var wg sync.WaitGroup
		for i := range enriched {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				process(idx)
			}(i)
		}
		wg.Wait()
	}

	result := &domain.MultiResult{UserResults: userResults}
	for _, u := range userResults {
		if u.SuccessCount > 0 {
			result.Success = true
			break
		}
	}
	return result, nil
}

// processRecipient runs one recipient's channel fan-out, failing closed on any
// unexpected panic: the entry records zero successes and one failure per
// requested channel, and siblings proceed.
func (o *MultiSendOrchestrator) processRecipient(
	ctx context.Context,
	tenantID string,
	recipient domain.Recipient,
	channels []domain.Channel,
	content domain.MessageContent,
	perUser BroadcastOptions,
	opts MultiSendOptions,
	zones map[string]string,
) (userResult domain.UserChannelResult) {
	userResult = domain.UserChannelResult{Recipient: recipient}

	defer func() {
		if r := recover(); r != nil {
			o.logger.ErrorContext(ctx, "Recipient processing panicked, failing closed",
				"recipient", recipient.Key(), "panic", r)
			failedAt := time.Now().UTC()
			results := make([]domain.ChannelResult, len(channels))
			for i, ch := range channels {
				results[i] = domain.ChannelResult{
					Channel:   ch,
					Timestamp: failedAt,
					Error: &domain.DispatchError{
						Code:    domain.CodeDispatchPanic,
						Message: fmt.Sprintf("recipient processing panicked: %v", r),
					},
				}
			}
			userResult = domain.UserChannelResult{
				Recipient:    recipient,
				Results:      results,
				FailureCount: len(channels),
			}
		}
	}()

	var scheduledAt *time.Time
	if opts.ScheduledAt != "" {
		zone := zones[recipient.Key()]
		if zone == "" {
			zone = "UTC"
		}
		userResult.Timezone = zone
		effective, err := CalculateScheduledTime(opts.ScheduledAt, zone)
		if err != nil {
			// The base instant was validated against UTC semantics up front; a
			// failure here means the resolved zone went bad, so degrade to UTC.
			o.logger.WarnContext(ctx, "Scheduled time calculation failed, using UTC",
				"recipient", recipient.Key(), "zone", zone, "error", err)
			effective, err = CalculateScheduledTime(opts.ScheduledAt, "UTC")
			if err != nil {
				panic(fmt.Sprintf("invalid scheduled-at instant slipped past validation: %v", err))
			}
			userResult.Timezone = "UTC"
		}
		scheduledAt = &effective
		userResult.ScheduledAt = scheduledAt
	}

	broadcastRes, err := o.broadcast.fanOut(ctx, tenantID, recipient, channels, content, perUser, scheduledAt)
	if err != nil && broadcastRes == nil {
		o.logger.ErrorContext(ctx, "Recipient fan-out failed with no result, failing closed",
			"recipient", recipient.Key(), "error", err)
		panic(err)
	}
	if err != nil {
		// The per-user requireAllChannelsSuccess gate fired; the collected
		// results still describe every channel outcome.
		o.logger.InfoContext(ctx, "Recipient failed requireAllChannelsSuccess gate",
			"recipient", recipient.Key(), "error", err)
	}

	userResult.Results = broadcastRes.Results
	userResult.Tally()
	return userResult
}
