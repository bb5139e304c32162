package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/actuallystonmai/availability-service/internal/domain"
)

// RedisStore is the shared second cache tier. Instances behind a load
// balancer read each other's aggregations through it.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get availability result from redis. A missing key is (nil, false, nil).
func (s *RedisStore) Get(ctx context.Context, key string) (*domain.AvailabilityResult, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get availability %s from redis: %w", key, err)
	}

	var result domain.AvailabilityResult
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, false, fmt.Errorf("unmarshal availability %s: %w", key, err)
	}
	return &result, true, nil
}

// Store availability result with the given ttl
func (s *RedisStore) Set(ctx context.Context, key string, result *domain.AvailabilityResult, ttl time.Duration) error {
	val, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal availability: %w", err)
	}
	if err := s.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("set availability %s in redis: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Clear every availability key: used by the admin flush
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, "avail:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Ping connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
