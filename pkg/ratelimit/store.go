package ratelimit

import (
	"context"
	"time"
)

// Store persists fixed-window counters. Keys are already hashed by the
// limiter: implementations never see raw IPs or emails.
type Store interface {
	// Increment atomically upserts the bucket row and returns the
	// post-increment hit count. Concurrent increments must never lose a hit.
	Increment(ctx context.Context, scope, keyHash string, windowSeconds int64, bucketStart time.Time) (int64, error)

	// Hits returns the current count without incrementing. A missing bucket
	// counts as zero.
	Hits(ctx context.Context, scope, keyHash string, windowSeconds int64, bucketStart time.Time) (int64, error)

	// DeleteOlderThan removes buckets not touched since the cutoff. It must
	// be idempotent and safe to run concurrently.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}
