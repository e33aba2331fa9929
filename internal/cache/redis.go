package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps proximity state in Redis so several API instances agree
// on what has already been notified
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisStore creates a store whose keys expire after ttl
func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// InRange reports the last stored state; a missing key is out of range
func (s *RedisStore) InRange(ctx context.Context, alertID string) (bool, error) {
	v, err := s.rdb.Get(ctx, stateKey(alertID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis: failed to read proximity state: %w", err)
	}
	return v == "1", nil
}

// SetInRange stores the state with the configured ttl
func (s *RedisStore) SetInRange(ctx context.Context, alertID string, inRange bool) error {
	v := "0"
	if inRange {
		v = "1"
	}
	if err := s.rdb.Set(ctx, stateKey(alertID), v, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to write proximity state: %w", err)
	}
	return nil
}

// Forget deletes the key of an alert
func (s *RedisStore) Forget(ctx context.Context, alertID string) error {
	if err := s.rdb.Del(ctx, stateKey(alertID)).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete proximity state: %w", err)
	}
	return nil
}
