package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedupeCache is a shared fast path in front of the authoritative
// fingerprint store. A hit means the fingerprint was seen within the TTL;
// a miss means nothing, the database still decides.
type RedisDedupeCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisDedupeCache creates a Redis-backed dedupe cache
func NewRedisDedupeCache(cfg RedisConfig, ttl time.Duration) (*RedisDedupeCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisDedupeCacheWithClient(client, "", ttl), nil
}

// NewRedisDedupeCacheWithClient creates a cache with an existing Redis
// client, useful for testing or sharing a client across components
func NewRedisDedupeCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisDedupeCache {
	if keyPrefix == "" {
		keyPrefix = "event:dedupe:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisDedupeCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Seen records the fingerprint and reports whether it was already present.
// SETNX keeps record-and-check a single atomic operation.
func (c *RedisDedupeCache) Seen(ctx context.Context, dedupeKey string) (bool, error) {
	set, err := c.client.SetNX(ctx, c.keyPrefix+dedupeKey, "1", c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe cache check failed: %w", err)
	}
	return !set, nil
}

// Close closes the Redis client
func (c *RedisDedupeCache) Close() error {
	return c.client.Close()
}
