// internal/eventbus/rabbitmq.go
// RabbitMQ topic exchange publisher with automatic reconnect

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ExchangeName is the topic exchange matching events are published to
const ExchangeName = "tutormatch.matching.events"

// ErrPublisherDisconnected is returned while the broker link is down
var ErrPublisherDisconnected = errors.New("eventbus: rabbitmq connection is down")

// RabbitMQPublisher publishes persistent JSON messages to a topic exchange.
// When the broker drops the connection it keeps redialling in the background;
// publishes in the meantime fail fast with ErrPublisherDisconnected.
type RabbitMQPublisher struct {
	url      string
	exchange string
	logger   *zap.Logger

	connect func() error
	backoff func() retry.Backoff

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRabbitMQPublisher dials the broker and declares the exchange
func NewRabbitMQPublisher(url string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	p := newRabbitMQPublisher(url, logger)
	p.connect = p.dial

	if err := p.connect(); err != nil {
		p.cancel()
		return nil, err
	}
	p.logger.Info("RabbitMQ publisher connected", zap.String("exchange", p.exchange))
	return p, nil
}

func newRabbitMQPublisher(url string, logger *zap.Logger) *RabbitMQPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RabbitMQPublisher{
		url:      url,
		exchange: ExchangeName,
		logger:   logger,
		backoff: func() retry.Backoff {
			return retry.WithCappedDuration(30*time.Second, retry.NewExponential(500*time.Millisecond))
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// dial opens a connection and channel, declares the exchange and starts
// watching the connection for a close notification.
func (p *RabbitMQPublisher) dial() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = ch.Close()
		_ = conn.Close()
		return nil
	}
	p.conn, p.channel = conn, ch
	p.mu.Unlock()

	go p.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	return nil
}

func (p *RabbitMQPublisher) watch(closed <-chan *amqp.Error) {
	amqpErr, ok := <-closed

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.conn, p.channel = nil, nil
	p.mu.Unlock()

	fields := []zap.Field{zap.String("exchange", p.exchange)}
	if ok && amqpErr != nil {
		fields = append(fields, zap.Error(amqpErr))
	}
	p.logger.Warn("RabbitMQ connection lost, reconnecting", fields...)

	p.reconnect()
}

// reconnect redials until it succeeds or the publisher is closed
func (p *RabbitMQPublisher) reconnect() {
	attempt := 0
	err := retry.Do(p.ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		if err := p.connect(); err != nil {
			p.logger.Warn("RabbitMQ reconnect failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		p.logger.Info("RabbitMQ reconnect stopped", zap.Error(err))
		return
	}
	p.logger.Info("RabbitMQ publisher reconnected", zap.Int("attempts", attempt))
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		p.logger.Warn("dropping message while disconnected", zap.String("routing_key", routingKey))
		return ErrPublisherDisconnected
	}

	err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		p.logger.Error("failed to publish message",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Close stops any reconnect loop and closes the broker link. Safe to call twice.
func (p *RabbitMQPublisher) Close() error {
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("error closing channel", zap.Error(err))
		}
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		if err != nil {
			return err
		}
	}

	p.logger.Info("RabbitMQ publisher closed")
	return nil
}
