// internal/profile/cache.go
// Redis read-through cache for curriculum names

package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imadgeboyega/tutormatch-backend/internal/matching"
)

const curriculumKeyPrefix = "curriculum:"

// CachedStore wraps a profile store and caches GetCurriculum in Redis.
// Tutor and parent reads always go to the underlying store.
type CachedStore struct {
	matching.ProfileStore
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedStore(store matching.ProfileStore, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedStore {
	return &CachedStore{
		ProfileStore: store,
		redis:        client,
		ttl:          ttl,
		logger:       logger,
	}
}

func (s *CachedStore) GetCurriculum(ctx context.Context, subjectID, gradeID uuid.UUID) (*matching.Curriculum, error) {
	key := curriculumKey(subjectID, gradeID)

	cached, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var c matching.Curriculum
		if err := json.Unmarshal(cached, &c); err == nil {
			return &c, nil
		}
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("curriculum cache read failed", zap.String("key", key), zap.Error(err))
	}

	c, err := s.ProfileStore.GetCurriculum(ctx, subjectID, gradeID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(c); err == nil {
		if err := s.redis.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.logger.Warn("curriculum cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return c, nil
}

func curriculumKey(subjectID, gradeID uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s", curriculumKeyPrefix, subjectID, gradeID)
}
