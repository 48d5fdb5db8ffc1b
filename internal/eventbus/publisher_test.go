package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher(zap.NewNop())

	assert.NoError(t, p.Publish(context.Background(), "matching.offer.created", []byte(`{}`)))
	assert.NoError(t, p.Close())
}

func TestNoopPublisher_NilLogger(t *testing.T) {
	var p Publisher = NewNoopPublisher(nil)
	assert.NoError(t, p.Publish(context.Background(), "k", nil))
}
