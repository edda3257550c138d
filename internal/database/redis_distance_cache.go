package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trip-planner/internal/models"
)

// RedisDistanceCache shares distance pairs between planner processes through Redis
type RedisDistanceCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDistanceCache connects to addr; a zero ttl keeps entries forever
func NewRedisDistanceCache(addr, password, prefix string, ttl time.Duration) *RedisDistanceCache {
	return &RedisDistanceCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisDistanceCache) key(origin, dest models.Coordinates) string {
	return c.prefix + ":" + MakeCacheKey(origin, dest)
}

func (c *RedisDistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	raw, err := c.client.Get(ctx, c.key(origin, dest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get distance cache entry: %w", err)
	}

	var entry models.DistanceCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode distance cache entry: %w", err)
	}
	return &entry, nil
}

func (c *RedisDistanceCache) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	return c.SetBatch(ctx, []models.DistanceCacheEntry{*entry})
}

func (c *RedisDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, entry := range entries {
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode distance cache entry: %w", err)
		}
		pipe.Set(ctx, c.key(entry.Origin, entry.Destination), raw, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write distance cache batch: %w", err)
	}
	return nil
}

func (c *RedisDistanceCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan distance cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear distance cache: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool
func (c *RedisDistanceCache) Close() error {
	return c.client.Close()
}
