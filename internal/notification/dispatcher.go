// internal/notification/dispatcher.go
// Queue-backed matching.NotificationDispatcher. Callers only enqueue; workers
// deliver each (user, channel) pair behind a circuit breaker with retry.

package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
)

var (
	ErrQueueFull        = errors.New("notification queue is full")
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")

	// errSkip marks a delivery with nothing to do, e.g. no phone number on file
	errSkip = errors.New("delivery skipped")
)

// Channels of a single notification kind, beyond the per-rank offer channels
var singleChannels = map[matching.NotificationKind][]matching.Channel{
	matching.NotificationMatchFound:       {matching.ChannelInApp, matching.ChannelPush, matching.ChannelEmail},
	matching.NotificationSessionConfirmed: {matching.ChannelInApp, matching.ChannelPush, matching.ChannelEmail},
	matching.NotificationMatchExpired:     {matching.ChannelInApp, matching.ChannelPush},
}

// Senders are the outbound transports. A nil sender disables its channel.
type Senders struct {
	Email EmailService
	SMS   SMSService
	Push  PushService
}

// DispatcherConfig tunes the worker pool and delivery policy
type DispatcherConfig struct {
	Workers         int
	QueueSize       int
	MaxRetries      int
	RetryBase       time.Duration
	DeliveryTimeout time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.QueueSize < 1 {
		c.QueueSize = 1
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 200 * time.Millisecond
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 30 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

type delivery struct {
	key     string
	userID  uuid.UUID
	channel matching.Channel
	message *Message
}

// Dispatcher implements matching.NotificationDispatcher
type Dispatcher struct {
	repo     Repository
	hub      *Hub
	senders  Senders
	dedupe   Deduper
	breakers map[matching.Channel]*gobreaker.CircuitBreaker[any]
	config   DispatcherConfig
	logger   *zap.Logger

	queue  chan delivery
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher wires a dispatcher. hub may be nil when realtime delivery is off.
func NewDispatcher(repo Repository, hub *Hub, senders Senders, dedupe Deduper, config DispatcherConfig, logger *zap.Logger) *Dispatcher {
	config = config.withDefaults()
	d := &Dispatcher{
		repo:     repo,
		hub:      hub,
		senders:  senders,
		dedupe:   dedupe,
		breakers: make(map[matching.Channel]*gobreaker.CircuitBreaker[any]),
		config:   config,
		logger:   logger,
		queue:    make(chan delivery, config.QueueSize),
	}
	for _, ch := range []matching.Channel{matching.ChannelInApp, matching.ChannelPush, matching.ChannelEmail, matching.ChannelSMS} {
		d.breakers[ch] = d.newBreaker(ch)
	}
	return d
}

func (d *Dispatcher) newBreaker(ch matching.Channel) *gobreaker.CircuitBreaker[any] {
	settings := gobreaker.Settings{
		Name:        string(ch),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     d.config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= d.config.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errSkip)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn("notification circuit breaker state changed",
				zap.String("channel", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(float64(to))
		},
	}
	return gobreaker.NewCircuitBreaker[any](settings)
}

// Start launches the workers. They exit once Close has drained the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.queue {
				queueDepth.Set(float64(len(d.queue)))
				d.process(ctx, job)
			}
		}()
	}
	d.logger.Info("notification dispatcher started",
		zap.Int("workers", d.config.Workers),
		zap.Int("queue_size", d.config.QueueSize),
	)
}

// Close stops accepting work and waits for queued deliveries to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

// NotifyOffer queues the offer for every recipient on the channels its rank earned
func (d *Dispatcher) NotifyOffer(ctx context.Context, recipients []matching.OfferRecipient, summary matching.OfferSummary) error {
	msg, err := Render(matching.NotificationOffer, map[string]string{
		"requestId": summary.RequestID.String(),
		"subject":   summary.SubjectName,
		"grade":     summary.GradeName,
		"city":      summary.PreferredCity,
		"expiresAt": summary.ExpiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range recipients {
		for _, ch := range r.Channels {
			key := deliveryKey(matching.NotificationOffer, summary.RequestID.String(), r.UserID, ch)
			if err := d.enqueue(delivery{key: key, userID: r.UserID, channel: ch, message: msg}); err != nil {
				errs = append(errs, fmt.Errorf("tutor %s %s: %w", r.TutorID, ch, err))
			}
		}
	}
	return errors.Join(errs...)
}

// NotifySingle queues one notification to one user
func (d *Dispatcher) NotifySingle(ctx context.Context, userID uuid.UUID, kind matching.NotificationKind, payload map[string]string) error {
	channels, ok := singleChannels[kind]
	if !ok {
		return fmt.Errorf("unsupported notification kind: %s", kind)
	}

	msg, err := Render(kind, payload)
	if err != nil {
		return err
	}

	ref := payload["sessionId"]
	if ref == "" {
		ref = payload["requestId"]
	}

	var errs []error
	for _, ch := range channels {
		key := deliveryKey(kind, ref, userID, ch)
		if err := d.enqueue(delivery{key: key, userID: userID, channel: ch, message: msg}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) enqueue(job delivery) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- job:
		queueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		recordDelivery(string(job.channel), resultDropped)
		return ErrQueueFull
	}
}

func deliveryKey(kind matching.NotificationKind, ref string, userID uuid.UUID, ch matching.Channel) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, ref, userID, ch)
}

func (d *Dispatcher) process(ctx context.Context, job delivery) {
	ctx, cancel := context.WithTimeout(ctx, d.config.DeliveryTimeout)
	defer cancel()

	logger := d.logger.With(
		zap.String("kind", string(job.message.Kind)),
		zap.String("channel", string(job.channel)),
		zap.String("user_id", job.userID.String()),
	)

	claimed, err := d.dedupe.Claim(ctx, job.key)
	if err != nil {
		// Fall through without the idempotency guard
		logger.Warn("dedupe claim failed", zap.Error(err))
		claimed = true
	}
	if !claimed {
		recordDelivery(string(job.channel), resultDuplicate)
		return
	}

	err = d.deliverWithRetry(ctx, job)
	switch {
	case err == nil:
		recordDelivery(string(job.channel), resultSent)
	case errors.Is(err, errSkip):
		recordDelivery(string(job.channel), resultSkipped)
		logger.Debug("delivery skipped", zap.Error(err))
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		recordDelivery(string(job.channel), resultRejected)
		logger.Warn("delivery rejected by circuit breaker")
		d.release(ctx, job.key, logger)
	default:
		recordDelivery(string(job.channel), resultFailed)
		logger.Error("delivery failed", zap.Error(err))
		d.release(ctx, job.key, logger)
	}
}

func (d *Dispatcher) release(ctx context.Context, key string, logger *zap.Logger) {
	if err := d.dedupe.Release(context.WithoutCancel(ctx), key); err != nil {
		logger.Warn("dedupe release failed", zap.Error(err))
	}
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, job delivery) error {
	backoff := retry.WithMaxRetries(uint64(d.config.MaxRetries), retry.NewExponential(d.config.RetryBase))
	breaker := d.breakers[job.channel]

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := breaker.Execute(func() (any, error) {
			return nil, d.send(ctx, job)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errSkip),
			errors.Is(err, gobreaker.ErrOpenState),
			errors.Is(err, gobreaker.ErrTooManyRequests):
			return err
		default:
			return retry.RetryableError(err)
		}
	})
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	switch job.channel {
	case matching.ChannelInApp:
		return d.sendInApp(ctx, job)
	case matching.ChannelPush:
		return d.sendPush(ctx, job)
	case matching.ChannelEmail:
		return d.sendEmail(ctx, job)
	case matching.ChannelSMS:
		return d.sendSMS(ctx, job)
	default:
		return fmt.Errorf("%w: unknown channel %s", errSkip, job.channel)
	}
}

func (d *Dispatcher) sendInApp(ctx context.Context, job delivery) error {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    job.userID,
		Type:      job.message.Kind,
		Title:     job.message.Title,
		Body:      job.message.Body,
		Data:      NotificationData(job.message.Data),
		CreatedAt: time.Now().UTC(),
	}
	if err := d.repo.CreateNotification(ctx, n); err != nil {
		return err
	}

	if d.hub != nil {
		d.hub.SendToUser(job.userID, wsEvents[job.message.Kind], n)
	}
	return nil
}

func (d *Dispatcher) sendPush(ctx context.Context, job delivery) error {
	if d.senders.Push == nil {
		return fmt.Errorf("%w: push disabled", errSkip)
	}

	tokens, err := d.repo.GetUserPushTokens(ctx, job.userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: no push tokens", errSkip)
	}

	result, err := d.senders.Push.SendPush(ctx, &PushNotification{
		Tokens:   tokens,
		Title:    job.message.Title,
		Body:     job.message.Body,
		Data:     job.message.Data,
		Priority: job.message.Priority,
	})
	if result != nil && len(result.StaleTokens) > 0 {
		if derr := d.repo.DeletePushTokens(ctx, result.StaleTokens); derr != nil {
			d.logger.Warn("failed to prune stale push tokens", zap.Error(derr))
		}
	}
	return err
}

func (d *Dispatcher) sendEmail(ctx context.Context, job delivery) error {
	if d.senders.Email == nil {
		return fmt.Errorf("%w: email disabled", errSkip)
	}

	contact, err := d.contact(ctx, job.userID)
	if err != nil {
		return err
	}
	if contact.Email == "" {
		return fmt.Errorf("%w: no email address", errSkip)
	}

	return d.senders.Email.SendEmail(ctx, &EmailNotification{
		To:      contact.Email,
		Subject: EmailSubject(job.message),
		Body:    job.message.Body,
		HTML:    job.message.HTML,
	})
}

func (d *Dispatcher) sendSMS(ctx context.Context, job delivery) error {
	if d.senders.SMS == nil {
		return fmt.Errorf("%w: sms disabled", errSkip)
	}

	contact, err := d.contact(ctx, job.userID)
	if err != nil {
		return err
	}
	if contact.PhoneNumber == "" {
		return fmt.Errorf("%w: no phone number", errSkip)
	}

	return d.senders.SMS.SendSMS(ctx, &SMSNotification{
		To:      contact.PhoneNumber,
		Message: job.message.SMS,
	})
}

func (d *Dispatcher) contact(ctx context.Context, userID uuid.UUID) (*Contact, error) {
	contact, err := d.repo.GetContact(ctx, userID)
	if errors.Is(err, ErrContactNotFound) {
		return nil, fmt.Errorf("%w: %v", errSkip, err)
	}
	return contact, err
}
