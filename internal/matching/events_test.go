package matching

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingBus struct {
	mu       sync.Mutex
	keys     []string
	payloads [][]byte
}

func (b *capturingBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, routingKey)
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *capturingBus) Close() error { return nil }

func TestBusPublisher_RoutesByEventType(t *testing.T) {
	bus := &capturingBus{}
	requestID := uuid.New()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("LKT", 5*3600+1800))

	err := NewBusPublisher(bus).Publish(context.Background(), NewEvent(EventOfferAccepted, requestID, at, map[string]string{"tutor_id": "t1"}))
	require.NoError(t, err)

	require.Len(t, bus.keys, 1)
	assert.Equal(t, "matching.offer.accepted", bus.keys[0])

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(bus.payloads[0], &decoded))
	assert.Equal(t, requestID.String(), decoded["request_id"])
	assert.Equal(t, "2025-03-01T03:30:00Z", decoded["occurred_at"])
	assert.Equal(t, "t1", decoded["data"].(map[string]interface{})["tutor_id"])
}
