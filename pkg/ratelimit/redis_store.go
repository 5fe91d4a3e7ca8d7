package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps buckets in Redis for multi-instance deployments that do
// not want rate limit traffic on the primary database. Buckets expire via
// TTL, so DeleteOlderThan is a no-op.
type RedisStore struct {
	client *redis.Client
	// ttlSlack keeps a bucket readable past its window end for Peek calls
	// near the boundary.
	ttlSlack time.Duration
}

// NewRedisStore creates a store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttlSlack: time.Minute}
}

func (s *RedisStore) Increment(ctx context.Context, scope, keyHash string, windowSeconds int64, bucketStart time.Time) (int64, error) {
	key := redisKey(scope, keyHash, windowSeconds, bucketStart)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Duration(windowSeconds)*time.Second+s.ttlSlack)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *RedisStore) Hits(ctx context.Context, scope, keyHash string, windowSeconds int64, bucketStart time.Time) (int64, error) {
	hits, err := s.client.Get(ctx, redisKey(scope, keyHash, windowSeconds, bucketStart)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return hits, nil
}

func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	// TTL-based expiry already bounds storage.
	return nil
}

func redisKey(scope, keyHash string, windowSeconds int64, bucketStart time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d:%d", scope, keyHash, windowSeconds, bucketStart.Unix())
}
