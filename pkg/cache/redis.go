package cache

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/redis"
)

// RedisStore is a backend shared by every process pointed at the same Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a backend on top of a connected client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	return r.client.Get(ctx, key)
}

func (r *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl)
}
