package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationCache is a fast path in front of the sessions table. The table
// stays authoritative; a cache miss falls through to it.
type RevocationCache interface {
	Revoke(ctx context.Context, tokenHash string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

type RedisRevocationCache struct {
	client *redis.Client
	prefix string
}

func NewRedisRevocationCache(client *redis.Client) *RedisRevocationCache {
	return &RedisRevocationCache{client: client, prefix: "testforge:revoked:"}
}

func (c *RedisRevocationCache) Revoke(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.prefix+tokenHash, 1, ttl).Err()
}

func (c *RedisRevocationCache) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+tokenHash).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
