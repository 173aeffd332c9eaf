package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

// MockNotificationRepository is a mock implementation of repository.NotificationRepository.
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		if args.Error(1) == nil {
			// passthrough: hand the input record back like the real repository
			return n, nil
		}
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockNotificationRepository) MarkSent(ctx context.Context, id, providerName, providerMessageID string, sentAt time.Time) error {
	return m.Called(ctx, id, providerName, providerMessageID, sentAt).Error(0)
}

func (m *MockNotificationRepository) MarkFailed(ctx context.Context, id, errorMessage string, failedAt time.Time) error {
	return m.Called(ctx, id, errorMessage, failedAt).Error(0)
}

func (m *MockNotificationRepository) MarkRejected(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockNotificationRepository) CountBatchStats(ctx context.Context, batchID string) (domain.BatchStats, error) {
	args := m.Called(ctx, batchID)
	return args.Get(0).(domain.BatchStats), args.Error(1)
}

// MockSuppressionRepository is a mock implementation of repository.SuppressionRepository.
type MockSuppressionRepository struct {
	mock.Mock
}

func (m *MockSuppressionRepository) IsSuppressed(ctx context.Context, tenantID, address string) (bool, string, error) {
	args := m.Called(ctx, tenantID, address)
	return args.Bool(0), args.String(1), args.Error(2)
}

// MockQueuePublisher is a mock implementation of QueuePublisher.
type MockQueuePublisher struct {
	mock.Mock
}

func (m *MockQueuePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return m.Called(ctx, subject, data).Error(0)
}

// recordingEvents captures lifecycle event names.
type recordingEvents struct {
	events []string
}

func (r *recordingEvents) Publish(_ context.Context, event string, _ any) {
	r.events = append(r.events, event)
}

func passthroughCreate(repo *MockNotificationRepository) {
	repo.On("Create", mock.Anything, mock.Anything).Return(nil, nil)
}

type dispatcherFixture struct {
	notifications *MockNotificationRepository
	suppressions  *MockSuppressionRepository
	queue         *MockQueuePublisher
	events        *recordingEvents
	dispatcher    *Dispatcher
}

func newDispatcherFixture(t *testing.T, providers ...*scriptedProvider) *dispatcherFixture {
	t.Helper()
	var callLog []string
	registry := newScriptedRegistry(t, &callLog, providers...)

	f := &dispatcherFixture{
		notifications: new(MockNotificationRepository),
		suppressions:  new(MockSuppressionRepository),
		queue:         new(MockQueuePublisher),
		events:        &recordingEvents{},
	}

	chains := make(map[domain.Channel]domain.ProviderChain)
	for _, ch := range domain.AllChannels() {
		chains[ch] = domain.ProviderChain{Primary: providers[0].name}
		for _, p := range providers[1:] {
			c := chains[ch]
			c.Fallbacks = append(c.Fallbacks, p.name)
			chains[ch] = c
		}
	}

	d, err := NewDispatcher(
		f.notifications, f.suppressions,
		NewFallbackExecutor(registry, discardLogger()),
		chains, nil, QueueSubjects(), f.queue, f.events, discardLogger())
	require.NoError(t, err)
	f.dispatcher = d
	return f
}

func TestNewDispatcher_RejectsInvalidChain(t *testing.T) {
	_, err := NewDispatcher(
		new(MockNotificationRepository), new(MockSuppressionRepository),
		NewFallbackExecutor(nil, discardLogger()),
		map[domain.Channel]domain.ProviderChain{domain.ChannelEmail: {Primary: "a", Fallbacks: []string{"a"}}},
		nil, QueueSubjects(), new(MockQueuePublisher), &recordingEvents{}, discardLogger())
	assert.Error(t, err)
}

func TestNewDispatcher_RejectsIncompleteTopology(t *testing.T) {
	subjects := QueueSubjects()
	delete(subjects, domain.ChannelPush)
	_, err := NewDispatcher(
		new(MockNotificationRepository), new(MockSuppressionRepository),
		NewFallbackExecutor(nil, discardLogger()),
		nil, nil, subjects, new(MockQueuePublisher), &recordingEvents{}, discardLogger())
	assert.Error(t, err)
}

func TestSendToChannel_ImmediateSuccess(t *testing.T) {
	f := newDispatcherFixture(t, &scriptedProvider{name: "primary"})
	passthroughCreate(f.notifications)
	f.suppressions.On("IsSuppressed", mock.Anything, "t1", "a@example.com").Return(false, "", nil)
	f.notifications.On("UpdateStatus", mock.Anything, mock.Anything, domain.MessageStatusProcessing).Return(nil)
	f.notifications.On("MarkSent", mock.Anything, mock.Anything, "primary", "primary-msg-1", mock.Anything).Return(nil)

	result := f.dispatcher.SendToChannel(context.Background(), &domain.ChannelSendRequest{
		TenantID:  "t1",
		Channel:   domain.ChannelEmail,
		Recipient: domain.Recipient{Email: "a@example.com"},
		Content:   domain.MessageContent{Subject: "hi", Body: "there"},
	})

	assert.True(t, result.Success)
	assert.Equal(t, "primary", result.Provider)
	f.notifications.AssertExpectations(t)
	assert.Equal(t, []string{"sent"}, f.events.events)
}

func TestSendToChannel_AllProvidersFailedMarksFailed(t *testing.T) {
	f := newDispatcherFixture(t,
		&scriptedProvider{name: "one", sendErr: errors.New("down")},
		&scriptedProvider{name: "two", sendErr: errors.New("also down")})
	passthroughCreate(f.notifications)
	f.suppressions.On("IsSuppressed", mock.Anything, mock.Anything, mock.Anything).Return(false, "", nil)
	f.notifications.On("UpdateStatus", mock.Anything, mock.Anything, domain.MessageStatusProcessing).Return(nil)
	f.notifications.On("MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result := f.dispatcher.SendToChannel(context.Background(), &domain.ChannelSendRequest{
		TenantID:  "t1",
		Channel:   domain.ChannelSMS,
		Recipient: domain.Recipient{Phone: "+15550100"},
		Content:   domain.MessageContent{Body: "hi"},
	})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, domain.CodeAllProvidersFailed, result.Error.Code)
	f.notifications.AssertCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []string{"failed"}, f.events.events)
}

func TestSendToChannel_SuppressedRecipientIsRejectedBeforeProviders(t *testing.T) {
	f := newDispatcherFixture(t, &scriptedProvider{name: "primary"})
	passthroughCreate(f.notifications)
	f.suppressions.On("IsSuppressed", mock.Anything, "t1", "blocked@example.com").
		Return(true, "hard bounce", nil)
	f.notifications.On("MarkRejected", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result := f.dispatcher.SendToChannel(context.Background(), &domain.ChannelSendRequest{
		TenantID:  "t1",
		Channel:   domain.ChannelEmail,
		Recipient: domain.Recipient{Email: "blocked@example.com"},
		Content:   domain.MessageContent{Body: "hi"},
	})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, domain.CodeSuppressed, result.Error.Code)
	assert.Contains(t, result.Error.Message, "hard bounce")
	f.notifications.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	f.notifications.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendToChannel_FutureScheduledAtIsAcknowledgedNotDispatched(t *testing.T) {
	f := newDispatcherFixture(t, &scriptedProvider{name: "primary"})
	passthroughCreate(f.notifications)

	future := time.Now().Add(2 * time.Hour)
	result := f.dispatcher.SendToChannel(context.Background(), &domain.ChannelSendRequest{
		ID:          "n-sched",
		TenantID:    "t1",
		Channel:     domain.ChannelEmail,
		Recipient:   domain.Recipient{Email: "a@example.com"},
		Content:     domain.MessageContent{Body: "hi"},
		ScheduledAt: &future,
	})

	assert.True(t, result.Success)
	assert.Equal(t, "n-sched", result.MessageID)
	assert.Equal(t, []string{"scheduled"}, f.events.events)
	f.suppressions.AssertNotCalled(t, "IsSuppressed", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnqueue_PublishesDispatchJob(t *testing.T) {
	f := newDispatcherFixture(t, &scriptedProvider{name: "primary"})
	passthroughCreate(f.notifications)
	f.queue.On("Publish", mock.Anything, DispatchSubjectPrefix+"email", mock.Anything).Return(nil)

	record, err := f.dispatcher.Enqueue(context.Background(), &domain.ChannelSendRequest{
		TenantID:  "t1",
		Channel:   domain.ChannelEmail,
		Recipient: domain.Recipient{Email: "a@example.com"},
		Content:   domain.MessageContent{Body: "hi"},
		Metadata:  map[string]string{"batch_id": "b1"},
	})

	require.NoError(t, err)
	require.NotNil(t, record.BatchID)
	assert.Equal(t, "b1", *record.BatchID)
	assert.Equal(t, domain.MessageStatusQueued, record.Status)
	f.queue.AssertExpectations(t)
	assert.Equal(t, []string{"queued"}, f.events.events)
}

func TestEnqueue_ScheduledRecordIsLeftForTheScheduler(t *testing.T) {
	f := newDispatcherFixture(t, &scriptedProvider{name: "primary"})
	passthroughCreate(f.notifications)

	future := time.Now().Add(time.Hour)
	record, err := f.dispatcher.Enqueue(context.Background(), &domain.ChannelSendRequest{
		TenantID:    "t1",
		Channel:     domain.ChannelSMS,
		Recipient:   domain.Recipient{Phone: "+15550100"},
		Content:     domain.MessageContent{Body: "hi"},
		ScheduledAt: &future,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusScheduled, record.Status)
	f.queue.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
