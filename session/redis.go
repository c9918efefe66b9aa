package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMedium stores values as plain Redis strings.
type RedisMedium struct {
	redis redis.UniversalClient
}

// NewRedisMedium wraps an existing client. The caller owns the client's lifecycle.
func NewRedisMedium(rdb redis.UniversalClient) *RedisMedium {
	return &RedisMedium{redis: rdb}
}

func (m *RedisMedium) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := m.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}
	return value, true, nil
}

func (m *RedisMedium) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := m.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}
	return nil
}

// Delete removes all keys in one DEL.
func (m *RedisMedium) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := m.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}
	return nil
}
