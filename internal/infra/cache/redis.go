// Package cache - redis.go
// go-redis backed implementation of the RedisClient interface.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// GoRedisClient adapts a go-redis connection to the RedisClient interface.
type GoRedisClient struct {
	rdb *redis.Client
}

// NewGoRedisClient connects to the Redis instance at addr ("host:port").
func NewGoRedisClient(addr string) *GoRedisClient {
	return &GoRedisClient{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *GoRedisClient) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *GoRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

func (c *GoRedisClient) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *GoRedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, key).Result()
}

func (c *GoRedisClient) HSet(ctx context.Context, key string, values ...interface{}) error {
	return c.rdb.HSet(ctx, key, values...).Err()
}

var _ RedisClient = (*GoRedisClient)(nil)
