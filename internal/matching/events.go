// internal/matching/events.go
// Offer lifecycle events for other subscribers

package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/tutormatch-backend/internal/eventbus"
)

// EventType doubles as the routing key on the bus
type EventType string

const (
	EventOfferCreated      EventType = "matching.offer.created"
	EventOfferAccepted     EventType = "matching.offer.accepted"
	EventOfferConfirmed    EventType = "matching.offer.confirmed"
	EventOfferNotifyFailed EventType = "matching.offer.notify_failed"
	EventOfferExpired      EventType = "matching.offer.expired"
)

// Event is a single lifecycle fact about a match request
type Event struct {
	ID         uuid.UUID         `json:"event_id"`
	Type       EventType         `json:"type"`
	RequestID  uuid.UUID         `json:"request_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data,omitempty"`
}

// NewEvent stamps a new event
func NewEvent(t EventType, requestID uuid.UUID, at time.Time, data map[string]string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		RequestID:  requestID,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}

// EventPublisher emits events. Failures never affect the operation that produced them.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

type busPublisher struct {
	bus eventbus.Publisher
}

// NewBusPublisher publishes events as JSON on a message bus, keyed by event type
func NewBusPublisher(bus eventbus.Publisher) EventPublisher {
	return &busPublisher{bus: bus}
}

func (p *busPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.bus.Publish(ctx, string(e.Type), payload)
}
