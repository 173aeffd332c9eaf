package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

func newMultiSender(sender ChannelSender) *MultiSendOrchestrator {
	logger := discardLogger()
	enricher := &identityEnricher{}
	broadcaster := NewBroadcastOrchestrator(sender, enricher, logger)
	timezones := NewTimezoneResolver(nil, logger)
	return NewMultiSendOrchestrator(broadcaster, enricher, timezones, logger)
}

func TestSendMulti_IndependentRecipientOutcomes(t *testing.T) {
	sender := funcSender{fn: func(_ context.Context, req *domain.ChannelSendRequest) domain.ChannelResult {
		res := domain.ChannelResult{Channel: req.Channel, Timestamp: time.Now().UTC()}
		if req.Recipient.Email == "bad@example.com" {
			res.Error = &domain.DispatchError{Code: domain.CodeAllProvidersFailed, Message: "stub failure"}
			return res
		}
		res.Success = true
		return res
	}}
	o := newMultiSender(sender)

	recipients := []domain.Recipient{
		{Email: "good@example.com"},
		{Email: "bad@example.com"},
	}
	channels := []domain.Channel{domain.ChannelEmail, domain.ChannelPush}

	result, err := o.SendMulti(context.Background(), "t1", recipients, channels, literalContent, MultiSendOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success, "one recipient succeeding is enough for overall success")
	require.Len(t, result.UserResults, 2)

	good, bad := result.UserResults[0], result.UserResults[1]
	assert.Equal(t, 2, good.SuccessCount)
	assert.Equal(t, 0, good.FailureCount)
	assert.Equal(t, 0, bad.SuccessCount)
	assert.Equal(t, 2, bad.FailureCount, "a failing recipient never aborts its siblings")
}

func TestSendMulti_OverallFailureWhenNoRecipientSucceeds(t *testing.T) {
	o := newMultiSender(successFor()) // every channel fails
	result, err := o.SendMulti(context.Background(), "t1",
		[]domain.Recipient{{Email: "a@example.com"}, {Email: "b@example.com"}},
		[]domain.Channel{domain.ChannelEmail}, literalContent, MultiSendOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestSendMulti_MutuallyExclusiveFlags(t *testing.T) {
	o := newMultiSender(successFor(domain.ChannelEmail))
	_, err := o.SendMulti(context.Background(), "t1",
		[]domain.Recipient{{Email: "a@example.com"}},
		[]domain.Channel{domain.ChannelEmail}, literalContent,
		MultiSendOptions{StopOnFirstChannelSuccess: true, RequireAllChannelsSuccess: true})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSendMulti_InputValidation(t *testing.T) {
	o := newMultiSender(successFor(domain.ChannelEmail))
	ctx := context.Background()

	_, err := o.SendMulti(ctx, "t1", nil, []domain.Channel{domain.ChannelEmail}, literalContent, MultiSendOptions{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = o.SendMulti(ctx, "t1", []domain.Recipient{{Email: "a@example.com"}}, nil, literalContent, MultiSendOptions{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = o.SendMulti(ctx, "t1", []domain.Recipient{{}}, []domain.Channel{domain.ChannelEmail}, literalContent, MultiSendOptions{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = o.SendMulti(ctx, "t1", []domain.Recipient{{Email: "a@example.com"}},
		[]domain.Channel{domain.ChannelEmail}, literalContent,
		MultiSendOptions{ScheduledAt: "not-a-timestamp"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSendMulti_SequentialProcessesRecipientsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	sender := funcSender{fn: func(_ context.Context, req *domain.ChannelSendRequest) domain.ChannelResult {
		mu.Lock()
		order = append(order, req.Recipient.Email)
		mu.Unlock()
		return domain.ChannelResult{Channel: req.Channel, Success: true, Timestamp: time.Now().UTC()}
	}}
	o := newMultiSender(sender)

	recipients := []domain.Recipient{
		{Email: "first@example.com"},
		{Email: "second@example.com"},
		{Email: "third@example.com"},
	}
	result, err := o.SendMulti(context.Background(), "t1", recipients,
		[]domain.Channel{domain.ChannelEmail}, literalContent, MultiSendOptions{Sequential: true})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"first@example.com", "second@example.com", "third@example.com"}, order)
}

func TestSendMulti_RecipientPanicFailsClosed(t *testing.T) {
	o := newMultiSender(successFor(domain.ChannelEmail, domain.ChannelSMS))

	// Calling the per-recipient step directly with an unparseable instant
	// bypasses the up-front validation and panics inside the step; the recover
	// must convert that into a fully failed row.
	channels := []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}
	got := o.processRecipient(context.Background(), "t1",
		domain.Recipient{Email: "a@example.com"}, channels, literalContent,
		BroadcastOptions{Policy: PolicyParallelAll},
		MultiSendOptions{ScheduledAt: "not-a-timestamp"}, nil)

	assert.Equal(t, 0, got.SuccessCount)
	assert.Equal(t, len(channels), got.FailureCount)
	require.Len(t, got.Results, len(channels))
	for _, r := range got.Results {
		require.NotNil(t, r.Error)
		assert.Equal(t, domain.CodeDispatchPanic, r.Error.Code)
	}
}

func TestSendMulti_ScheduledAtResolvedPerRecipientZone(t *testing.T) {
	o := newMultiSender(successFor(domain.ChannelEmail))

	base := "2026-09-01T12:00:00Z"
	recipients := []domain.Recipient{
		{UserID: "u1", Metadata: map[string]string{"timezone": "America/New_York"}},
		{UserID: "u2"},
	}
	result, err := o.SendMulti(context.Background(), "t1", recipients,
		[]domain.Channel{domain.ChannelEmail}, literalContent,
		MultiSendOptions{
			ScheduledAt: base,
			Timezone:    &domain.TimezoneOptions{Mode: domain.TimezoneModeUser},
		})

	require.NoError(t, err)
	require.Len(t, result.UserResults, 2)

	withZone := result.UserResults[0]
	assert.Equal(t, "America/New_York", withZone.Timezone)
	require.NotNil(t, withZone.ScheduledAt)

	defaulted := result.UserResults[1]
	assert.Equal(t, "UTC", defaulted.Timezone, "unresolvable recipients degrade to UTC")
	require.NotNil(t, defaulted.ScheduledAt)

	// Same instant, different wall-clock representation.
	assert.True(t, withZone.ScheduledAt.Equal(*defaulted.ScheduledAt))
	assert.Equal(t, "America/New_York", withZone.ScheduledAt.Location().String())
}

func TestSendMulti_ClientModeInvalidZoneIsConfigurationError(t *testing.T) {
	o := newMultiSender(successFor(domain.ChannelEmail))
	_, err := o.SendMulti(context.Background(), "t1",
		[]domain.Recipient{{Email: "a@example.com"}},
		[]domain.Channel{domain.ChannelEmail}, literalContent,
		MultiSendOptions{
			ScheduledAt: "2026-09-01T12:00:00Z",
			Timezone:    &domain.TimezoneOptions{Mode: domain.TimezoneModeClient, Timezone: "Mars/Olympus"},
		})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
