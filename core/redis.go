package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"snsm/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache keys shared by the API layer and the blocklist manager. The manager
// invalidates these on every block/unblock so agent polls never serve a
// stale block set for longer than one write.
const (
	CacheKeyActiveBlocklist = "snsm:blocklist:active"
	CacheKeyTopThreats      = "snsm:threat_scores:top"
)

// RedisCache provides a Redis-based cache for frequently polled data:
// the active blocklist (fetched by every agent on its poll interval) and
// the top-threats list backing the dashboard.
type RedisCache struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(addr, password string, db, poolSize int, logger *zap.SugaredLogger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	return &RedisCache{
		client: client,
		logger: logger,
	}
}

// Ping tests the Redis connection
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Set stores a value in the cache with expiration
func (rc *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		rc.logger.Errorf("Failed to marshal cache value for key %s: %v", key, err)
		metrics.CacheErrors.WithLabelValues("marshal").Inc()
		return err
	}

	// Size cap so one oversized blocklist snapshot cannot exhaust Redis memory
	const maxSize = 10 * 1024 * 1024
	if len(data) > maxSize {
		rc.logger.Warnf("Cache value for key %s exceeds size limit (%d bytes), rejecting", key, len(data))
		metrics.CacheErrors.WithLabelValues("size_limit").Inc()
		return fmt.Errorf("cache value size %d bytes exceeds maximum allowed size %d bytes", len(data), maxSize)
	}

	err = rc.client.Set(ctx, key, data, expiration).Err()
	if err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
	}
	return err
}

// Get retrieves a value from the cache. Returns false with a nil error
// when the key does not exist.
func (rc *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := rc.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			metrics.CacheMisses.Inc()
			return false, nil
		}
		rc.logger.Errorf("Failed to get cache value for key %s: %v", key, err)
		metrics.CacheErrors.WithLabelValues("get").Inc()
		return false, err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		rc.logger.Errorf("Failed to unmarshal cache value for key %s: %v", key, err)
		metrics.CacheErrors.WithLabelValues("unmarshal").Inc()
		return false, err
	}

	metrics.CacheHits.Inc()
	return true, nil
}

// Delete removes keys from the cache, used for write-path invalidation
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := rc.client.Del(ctx, keys...).Err()
	if err != nil {
		metrics.CacheErrors.WithLabelValues("delete").Inc()
	}
	return err
}
