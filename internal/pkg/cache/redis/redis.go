package redisCache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"aws-sqs-helper/internal/pkg/cache"
)

var _ cache.Client = (*RedisRepository)(nil)

// RedisRepository implements the cache.Client interface using Redis as backend.
type RedisRepository struct {
	Client *redis.Client // Redis client instance
}

// NewClient creates a new redis client
func NewClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:       addr,
		DB:         db,
		MaxRetries: 3,
	})
}

// Get retrieves a value by key from Redis.
func (r *RedisRepository) Get(ctx context.Context, key string) (string, error) {
	v, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", cache.ErrNotFound
	}
	return v, err
}

// Set sets a value with expiration in Redis.
func (r *RedisRepository) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return r.Client.Set(ctx, key, value, expiration).Err()
}

// Delete removes a key from Redis.
func (r *RedisRepository) Delete(ctx context.Context, key string) error {
	return r.Client.Del(ctx, key).Err()
}

// ScanPrefix walks the keyspace with SCAN. Keys that expire between SCAN and GET are skipped.
func (r *RedisRepository) ScanPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	result := make(map[string]string)
	iter := r.Client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		value, err := r.Client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, iter.Err()
}
