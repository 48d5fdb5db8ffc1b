// internal/notification/dedupe.go
// Idempotency keys so a repeated dispatch of the same event delivers once

package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const dedupeKeyPrefix = "notify:sent:"

// Deduper claims a delivery key. Claim returns false if the key was already taken.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisDeduper claims keys with SETNX and a TTL
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, dedupeKeyPrefix+key, 1, d.ttl).Result()
}

// Release frees a key after a failed delivery so a later dispatch may retry it
func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, dedupeKeyPrefix+key).Err()
}

// MemoryDeduper is the in-process fallback when Redis is not configured
type MemoryDeduper struct {
	mu   sync.Mutex
	keys map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{
		keys: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (d *MemoryDeduper) Claim(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expires, ok := d.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	d.keys[key] = now.Add(d.ttl)

	// Opportunistic cleanup keeps the map bounded
	if len(d.keys) > 10000 {
		for k, exp := range d.keys {
			if !now.Before(exp) {
				delete(d.keys, k)
			}
		}
	}
	return true, nil
}

func (d *MemoryDeduper) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}
