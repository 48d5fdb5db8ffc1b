// internal/eventbus/publisher.go
// Outbound domain event publishing

package eventbus

import (
	"context"

	"go.uber.org/zap"
)

// Publisher sends payloads to a message broker under a routing key
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// NoopPublisher drops every message. Used when no broker is configured.
type NoopPublisher struct {
	logger *zap.Logger
}

func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.logger.Debug("noop publish",
		zap.String("routing_key", routingKey),
		zap.Int("size", len(payload)),
	)
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
