package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
)

type failingEmail struct {
	mu       sync.Mutex
	failures int
	attempts int
	sent     []*EmailNotification
}

func (f *failingEmail) SendEmail(ctx context.Context, n *EmailNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures < 0 || f.attempts <= f.failures {
		return errors.New("smtp: 421 service not available")
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *failingEmail) counts() (attempts, sent int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts, len(f.sent)
}

type stalePush struct {
	stale []string
}

func (s *stalePush) SendPush(ctx context.Context, n *PushNotification) (*PushResult, error) {
	return &PushResult{Sent: len(n.Tokens) - len(s.stale), Failed: len(s.stale), StaleTokens: s.stale}, nil
}

type dispatcherFixture struct {
	repo   *MemoryRepository
	email  *MockEmailService
	sms    *MockSMSService
	push   *MockPushService
	dedupe *MemoryDeduper

	tutor1, tutor2, parent uuid.UUID
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	logger := zap.NewNop()
	f := &dispatcherFixture{
		repo:   NewMemoryRepository(),
		email:  NewMockEmailService(logger),
		sms:    NewMockSMSService(logger),
		push:   NewMockPushService(logger),
		dedupe: NewMemoryDeduper(time.Hour),
		tutor1: uuid.New(),
		tutor2: uuid.New(),
		parent: uuid.New(),
	}
	f.repo.PutContact(&Contact{UserID: f.tutor1, FullName: "Tutor One", Email: "one@example.com", PhoneNumber: "+94770000001"})
	f.repo.PutContact(&Contact{UserID: f.tutor2, FullName: "Tutor Two", Email: "two@example.com", PhoneNumber: "+94770000002"})
	f.repo.PutContact(&Contact{UserID: f.parent, FullName: "Parent", Email: "parent@example.com"})

	ctx := context.Background()
	require.NoError(t, f.repo.SavePushToken(ctx, f.tutor1, "token-tutor-one-device", "android"))
	require.NoError(t, f.repo.SavePushToken(ctx, f.tutor2, "token-tutor-two-device", "ios"))
	return f
}

func (f *dispatcherFixture) senders() Senders {
	return Senders{Email: f.email, SMS: f.sms, Push: f.push}
}

func (f *dispatcherFixture) newDispatcher(senders Senders, config DispatcherConfig) *Dispatcher {
	if config.RetryBase == 0 {
		config.RetryBase = time.Millisecond
	}
	return NewDispatcher(f.repo, nil, senders, f.dedupe, config, zap.NewNop())
}

func (f *dispatcherFixture) offer() ([]matching.OfferRecipient, matching.OfferSummary) {
	recipients := []matching.OfferRecipient{
		{
			TutorID: uuid.New(), UserID: f.tutor1, Rank: 1, Score: 76.4,
			Channels: []matching.Channel{matching.ChannelInApp, matching.ChannelPush, matching.ChannelEmail, matching.ChannelSMS},
		},
		{
			TutorID: uuid.New(), UserID: f.tutor2, Rank: 2, Score: 49.5,
			Channels: []matching.Channel{matching.ChannelInApp, matching.ChannelPush},
		},
	}
	summary := matching.OfferSummary{
		RequestID:     uuid.New(),
		SubjectName:   "Mathematics",
		GradeName:     "Grade 9",
		PreferredCity: "Colombo",
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
	return recipients, summary
}

func TestDispatcher_OfferChannelsFollowRank(t *testing.T) {
	f := newDispatcherFixture(t)
	d := f.newDispatcher(f.senders(), DispatcherConfig{Workers: 2, QueueSize: 32})
	d.Start(context.Background())

	recipients, summary := f.offer()
	require.NoError(t, d.NotifyOffer(context.Background(), recipients, summary))
	d.Close()

	emails := f.email.Sent()
	require.Len(t, emails, 1)
	assert.Equal(t, "one@example.com", emails[0].To)
	assert.Equal(t, "New Student Request - Business Master", emails[0].Subject)
	assert.Contains(t, emails[0].HTML, "Mathematics")

	texts := f.sms.Sent()
	require.Len(t, texts, 1)
	assert.Equal(t, "+94770000001", texts[0].To)
	assert.Equal(t, "New student request! Grade Grade 9, Subject: Mathematics. Check your dashboard to accept.", texts[0].Message)

	assert.Len(t, f.push.Sent(), 2)

	for _, user := range []uuid.UUID{f.tutor1, f.tutor2} {
		inbox, err := f.repo.GetUserNotifications(context.Background(), user, 10, false)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, matching.NotificationOffer, inbox[0].Type)
		assert.Equal(t, "New student looking for Mathematics tutor in Colombo", inbox[0].Body)
		assert.Equal(t, summary.RequestID.String(), inbox[0].Data["requestId"])
	}
}

func TestDispatcher_RepeatedOfferIsDeliveredOnce(t *testing.T) {
	f := newDispatcherFixture(t)
	d := f.newDispatcher(f.senders(), DispatcherConfig{Workers: 1, QueueSize: 32})
	d.Start(context.Background())

	recipients, summary := f.offer()
	require.NoError(t, d.NotifyOffer(context.Background(), recipients, summary))
	require.NoError(t, d.NotifyOffer(context.Background(), recipients, summary))
	d.Close()

	assert.Len(t, f.email.Sent(), 1)
	assert.Len(t, f.sms.Sent(), 1)
	assert.Len(t, f.push.Sent(), 2)
	inbox, err := f.repo.GetUserNotifications(context.Background(), f.tutor1, 10, false)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

func TestDispatcher_NotifySingleChannels(t *testing.T) {
	f := newDispatcherFixture(t)
	d := f.newDispatcher(f.senders(), DispatcherConfig{Workers: 1, QueueSize: 32})
	d.Start(context.Background())

	requestID := uuid.NewString()
	require.NoError(t, d.NotifySingle(context.Background(), f.parent, matching.NotificationMatchFound, map[string]string{
		"requestId": requestID,
		"tutorName": "Tutor One",
	}))
	require.NoError(t, d.NotifySingle(context.Background(), f.tutor1, matching.NotificationMatchExpired, map[string]string{
		"requestId": requestID,
	}))
	d.Close()

	emails := f.email.Sent()
	require.Len(t, emails, 1)
	assert.Equal(t, "parent@example.com", emails[0].To)
	assert.Equal(t, "Tutor Matched! - Business Master", emails[0].Subject)
	assert.Empty(t, f.sms.Sent())

	inbox, err := f.repo.GetUserNotifications(context.Background(), f.parent, 10, false)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Tutor One has accepted your request. Please confirm to schedule.", inbox[0].Body)

	inbox, err = f.repo.GetUserNotifications(context.Background(), f.tutor1, 10, false)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, matching.NotificationMatchExpired, inbox[0].Type)
}

func TestDispatcher_SkipsMissingContactDetails(t *testing.T) {
	f := newDispatcherFixture(t)
	f.repo.PutContact(&Contact{UserID: f.tutor1, FullName: "Tutor One", Email: "one@example.com"})
	d := f.newDispatcher(f.senders(), DispatcherConfig{Workers: 1, QueueSize: 32})
	d.Start(context.Background())

	recipients, summary := f.offer()
	recipients[0].UserID = f.tutor1
	require.NoError(t, d.NotifyOffer(context.Background(), recipients, summary))

	unknown := uuid.New()
	require.NoError(t, d.NotifySingle(context.Background(), unknown, matching.NotificationMatchFound, map[string]string{"requestId": "r1"}))
	d.Close()

	assert.Empty(t, f.sms.Sent())
	require.Len(t, f.email.Sent(), 1)

	inbox, err := f.repo.GetUserNotifications(context.Background(), unknown, 10, false)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	f := newDispatcherFixture(t)
	email := &failingEmail{failures: 2}
	senders := f.senders()
	senders.Email = email
	d := f.newDispatcher(senders, DispatcherConfig{Workers: 1, QueueSize: 32, MaxRetries: 3, BreakerFailures: 10})
	d.Start(context.Background())

	require.NoError(t, d.NotifySingle(context.Background(), f.parent, matching.NotificationSessionConfirmed, map[string]string{
		"sessionId":   uuid.NewString(),
		"sessionDate": "2025-03-10",
	}))
	d.Close()

	attempts, sent := email.counts()
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, sent)
}

func TestDispatcher_FailedDeliveryReleasesKey(t *testing.T) {
	f := newDispatcherFixture(t)
	email := &failingEmail{failures: -1}
	senders := f.senders()
	senders.Email = email
	d := f.newDispatcher(senders, DispatcherConfig{Workers: 1, QueueSize: 32, MaxRetries: 1, BreakerFailures: 10})
	d.Start(context.Background())

	payload := map[string]string{"requestId": "req-1", "tutorName": "Tutor One"}
	require.NoError(t, d.NotifySingle(context.Background(), f.parent, matching.NotificationMatchFound, payload))
	d.Close()

	attempts, sent := email.counts()
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 0, sent)

	emailKey := deliveryKey(matching.NotificationMatchFound, "req-1", f.parent, matching.ChannelEmail)
	claimed, err := f.dedupe.Claim(context.Background(), emailKey)
	require.NoError(t, err)
	assert.True(t, claimed, "failed delivery should be retryable later")

	inAppKey := deliveryKey(matching.NotificationMatchFound, "req-1", f.parent, matching.ChannelInApp)
	claimed, err = f.dedupe.Claim(context.Background(), inAppKey)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestDispatcher_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	f := newDispatcherFixture(t)
	email := &failingEmail{failures: -1}
	senders := f.senders()
	senders.Email = email
	d := f.newDispatcher(senders, DispatcherConfig{Workers: 1, QueueSize: 64, MaxRetries: 0, BreakerFailures: 2, BreakerTimeout: time.Minute})
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.NotifySingle(context.Background(), f.parent, matching.NotificationMatchFound, map[string]string{
			"requestId": uuid.NewString(),
		}))
	}
	d.Close()

	attempts, _ := email.counts()
	assert.Equal(t, 2, attempts)

	inbox, err := f.repo.GetUserNotifications(context.Background(), f.parent, 10, false)
	require.NoError(t, err)
	assert.Len(t, inbox, 5)
}

func TestDispatcher_PrunesStalePushTokens(t *testing.T) {
	f := newDispatcherFixture(t)
	senders := f.senders()
	senders.Push = &stalePush{stale: []string{"token-tutor-one-device"}}
	d := f.newDispatcher(senders, DispatcherConfig{Workers: 1, QueueSize: 32})
	d.Start(context.Background())

	require.NoError(t, d.NotifySingle(context.Background(), f.tutor1, matching.NotificationMatchExpired, map[string]string{"requestId": "r1"}))
	d.Close()

	tokens, err := f.repo.GetUserPushTokens(context.Background(), f.tutor1)
	require.NoError(t, err)
	assert.Empty(t, tokens)

	tokens, err = f.repo.GetUserPushTokens(context.Background(), f.tutor2)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestDispatcher_QueueFull(t *testing.T) {
	f := newDispatcherFixture(t)
	d := f.newDispatcher(f.senders(), DispatcherConfig{Workers: 1, QueueSize: 1})

	err := d.NotifySingle(context.Background(), f.tutor1, matching.NotificationMatchExpired, map[string]string{"requestId": "r1"})
	assert.ErrorIs(t, err, ErrQueueFull)

	d.Start(context.Background())
	d.Close()
}

func TestDispatcher_Closed(t *testing.T) {
	f := newDispatcherFixture(t)
	d := f.newDispatcher(f.senders(), DispatcherConfig{})
	d.Start(context.Background())
	d.Close()
	d.Close()

	err := d.NotifySingle(context.Background(), f.tutor1, matching.NotificationMatchExpired, map[string]string{"requestId": "r1"})
	assert.ErrorIs(t, err, ErrDispatcherClosed)

	recipients, summary := f.offer()
	err = d.NotifyOffer(context.Background(), recipients, summary)
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestDispatcher_UnsupportedKind(t *testing.T) {
	f := newDispatcherFixture(t)
	d := f.newDispatcher(f.senders(), DispatcherConfig{})

	err := d.NotifySingle(context.Background(), f.tutor1, matching.NotificationOffer, nil)
	assert.Error(t, err)
}

func TestDispatcher_DisabledChannelsAreSkipped(t *testing.T) {
	f := newDispatcherFixture(t)
	d := f.newDispatcher(Senders{}, DispatcherConfig{Workers: 1, QueueSize: 32})
	d.Start(context.Background())

	recipients, summary := f.offer()
	require.NoError(t, d.NotifyOffer(context.Background(), recipients, summary))
	d.Close()

	inbox, err := f.repo.GetUserNotifications(context.Background(), f.tutor1, 10, false)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

var _ matching.NotificationDispatcher = (*Dispatcher)(nil)
