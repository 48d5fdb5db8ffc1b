package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper(time.Minute)
	d.now = func() time.Time { return now }

	ok, err := d.Claim(ctx, "MATCH_OFFER:r1:u1:email")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Claim(ctx, "MATCH_OFFER:r1:u1:email")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.Claim(ctx, "MATCH_OFFER:r1:u1:sms")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, d.Release(ctx, "MATCH_OFFER:r1:u1:email"))
	ok, err = d.Claim(ctx, "MATCH_OFFER:r1:u1:email")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = d.Claim(ctx, "MATCH_OFFER:r1:u1:sms")
	require.NoError(t, err)
	assert.True(t, ok, "claims lapse after the TTL")
}
