package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

// funcSender adapts a function to ChannelSender so per-channel behavior can be
// scripted inline in tests.
type funcSender struct {
	fn func(ctx context.Context, req *domain.ChannelSendRequest) domain.ChannelResult
}

func (s funcSender) SendToChannel(ctx context.Context, req *domain.ChannelSendRequest) domain.ChannelResult {
	return s.fn(ctx, req)
}

// identityEnricher passes the recipient through unchanged.
type identityEnricher struct{ calls int32 }

func (e *identityEnricher) Enrich(_ context.Context, r domain.Recipient, _ string) domain.Recipient {
	atomic.AddInt32(&e.calls, 1)
	return r
}

func successFor(channels ...domain.Channel) funcSender {
	ok := make(map[domain.Channel]bool, len(channels))
	for _, ch := range channels {
		ok[ch] = true
	}
	return funcSender{fn: func(_ context.Context, req *domain.ChannelSendRequest) domain.ChannelResult {
		res := domain.ChannelResult{Channel: req.Channel, Timestamp: time.Now().UTC()}
		if ok[req.Channel] {
			res.Success = true
			res.Provider = "stub"
			return res
		}
		res.Error = &domain.DispatchError{Code: domain.CodeAllProvidersFailed, Message: "stub failure"}
		return res
	}}
}

var literalContent = domain.MessageContent{Subject: "hello", Body: "world"}

func TestBroadcast_ParallelAllCollectsEveryOutcome(t *testing.T) {
	sender := successFor(domain.ChannelEmail, domain.ChannelPush)
	enricher := &identityEnricher{}
	o := NewBroadcastOrchestrator(sender, enricher, discardLogger())

	channels := []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelPush}
	result, err := o.Broadcast(context.Background(), "t1",
		domain.Recipient{Email: "a@example.com"}, channels, literalContent,
		BroadcastOptions{Policy: PolicyParallelAll})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	require.Len(t, result.Results, 3)
	// Results are indexed by the request's channel order.
	for i, ch := range channels {
		assert.Equal(t, ch, result.Results[i].Channel)
	}
	assert.False(t, result.Results[1].Success)
	assert.NotEmpty(t, result.CorrelationID)
	assert.Equal(t, int32(1), enricher.calls, "enrichment must run exactly once per broadcast")
}

func TestBroadcast_RaceReturnsFirstSuccessOnly(t *testing.T) {
	sender := funcSender{fn: func(_ context.Context, req *domain.ChannelSendRequest) domain.ChannelResult {
		if req.Channel == domain.ChannelSMS {
			// The slow channel loses the race even though it would succeed.
			time.Sleep(150 * time.Millisecond)
			return domain.ChannelResult{Channel: req.Channel, Success: true, Timestamp: time.Now().UTC()}
		}
		return domain.ChannelResult{Channel: req.Channel, Success: true, Provider: "fast", Timestamp: time.Now().UTC()}
	}}
	o := NewBroadcastOrchestrator(sender, &identityEnricher{}, discardLogger())

	result, err := o.Broadcast(context.Background(), "t1",
		domain.Recipient{Email: "a@example.com"},
		[]domain.Channel{domain.ChannelEmail, domain.ChannelSMS}, literalContent,
		BroadcastOptions{Policy: PolicyRace})

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Results, 1, "race returns the winning result immediately")
	assert.Equal(t, domain.ChannelEmail, result.Results[0].Channel)
	assert.Equal(t, 1, result.SuccessCount)
}

func TestBroadcast_RaceWithNoSuccessReturnsFullCollection(t *testing.T) {
	sender := successFor() // every channel fails
	o := NewBroadcastOrchestrator(sender, &identityEnricher{}, discardLogger())

	channels := []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelChat}
	result, err := o.Broadcast(context.Background(), "t1",
		domain.Recipient{Phone: "+15550100"}, channels, literalContent,
		BroadcastOptions{Policy: PolicyRace})

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Results, 3, "raced failures stay inspectable")
	assert.Equal(t, 3, result.FailureCount)
	for i, ch := range channels {
		assert.Equal(t, ch, result.Results[i].Channel)
		assert.NotNil(t, result.Results[i].Error)
	}
}

func TestBroadcast_RequireAllSuccessGate(t *testing.T) {
	sender := successFor(domain.ChannelEmail)
	o := NewBroadcastOrchestrator(sender, &identityEnricher{}, discardLogger())

	result, err := o.Broadcast(context.Background(), "t1",
		domain.Recipient{Email: "a@example.com"},
		[]domain.Channel{domain.ChannelEmail, domain.ChannelSMS}, literalContent,
		BroadcastOptions{Policy: PolicyParallelAll, RequireAllSuccess: true})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRequireAllSuccess)
	// The gate fires after all channels were attempted; the result is complete.
	require.NotNil(t, result)
	assert.Len(t, result.Results, 2)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
}

func TestBroadcast_RequireAllSuccessForcesCollectionUnderRace(t *testing.T) {
	sender := successFor(domain.ChannelEmail, domain.ChannelSMS)
	o := NewBroadcastOrchestrator(sender, &identityEnricher{}, discardLogger())

	result, err := o.Broadcast(context.Background(), "t1",
		domain.Recipient{Email: "a@example.com"},
		[]domain.Channel{domain.ChannelEmail, domain.ChannelSMS}, literalContent,
		BroadcastOptions{Policy: PolicyRace, RequireAllSuccess: true})

	require.NoError(t, err)
	require.Len(t, result.Results, 2, "requireAllSuccess forces full collection even under race")
	assert.Equal(t, 2, result.SuccessCount)
}

func TestBroadcast_SenderPanicBecomesFailedResult(t *testing.T) {
	sender := funcSender{fn: func(_ context.Context, req *domain.ChannelSendRequest) domain.ChannelResult {
		if req.Channel == domain.ChannelPush {
			panic("push gateway client is nil")
		}
		return domain.ChannelResult{Channel: req.Channel, Success: true, Timestamp: time.Now().UTC()}
	}}
	o := NewBroadcastOrchestrator(sender, &identityEnricher{}, discardLogger())

	result, err := o.Broadcast(context.Background(), "t1",
		domain.Recipient{Email: "a@example.com"},
		[]domain.Channel{domain.ChannelEmail, domain.ChannelPush}, literalContent,
		BroadcastOptions{Policy: PolicyParallelAll})

	require.NoError(t, err)
	assert.True(t, result.Success, "sibling channels are never aborted by a panic")
	require.Len(t, result.Results, 2)
	require.NotNil(t, result.Results[1].Error)
	assert.Equal(t, domain.CodeDispatchPanic, result.Results[1].Error.Code)
	assert.Contains(t, result.Results[1].Error.Message, "push gateway client is nil")
}

func TestBroadcast_InputValidation(t *testing.T) {
	o := NewBroadcastOrchestrator(successFor(), &identityEnricher{}, discardLogger())
	ctx := context.Background()

	_, err := o.Broadcast(ctx, "t1", domain.Recipient{Email: "a@example.com"}, nil, literalContent, BroadcastOptions{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = o.Broadcast(ctx, "t1", domain.Recipient{},
		[]domain.Channel{domain.ChannelEmail}, literalContent, BroadcastOptions{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = o.Broadcast(ctx, "t1", domain.Recipient{Email: "a@example.com"},
		[]domain.Channel{domain.Channel("fax")}, literalContent, BroadcastOptions{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	bothForms := domain.MessageContent{TemplateID: "tpl-1", Body: "literal"}
	_, err = o.Broadcast(ctx, "t1", domain.Recipient{Email: "a@example.com"},
		[]domain.Channel{domain.ChannelEmail}, bothForms, BroadcastOptions{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	neitherForm := domain.MessageContent{}
	_, err = o.Broadcast(ctx, "t1", domain.Recipient{Email: "a@example.com"},
		[]domain.Channel{domain.ChannelEmail}, neitherForm, BroadcastOptions{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
