package ratelimit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists buckets in the rate_limit_buckets table. The
// insert-on-conflict-increment keeps concurrent hits lossless without a
// read-then-write race.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a store backed by the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Increment(ctx context.Context, scope, keyHash string, windowSeconds int64, bucketStart time.Time) (int64, error) {
	var hits int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO rate_limit_buckets (scope, bucket_key_hash, window_seconds, bucket_start, hits, updated_at)
		VALUES ($1, $2, $3, $4, 1, now())
		ON CONFLICT (scope, bucket_key_hash, window_seconds, bucket_start)
		DO UPDATE SET hits = rate_limit_buckets.hits + 1, updated_at = now()
		RETURNING hits`,
		scope, keyHash, windowSeconds, bucketStart,
	).Scan(&hits)
	if err != nil {
		return 0, err
	}
	return hits, nil
}

func (s *PostgresStore) Hits(ctx context.Context, scope, keyHash string, windowSeconds int64, bucketStart time.Time) (int64, error) {
	var hits int64
	err := s.db.QueryRow(ctx, `
		SELECT hits FROM rate_limit_buckets
		WHERE scope = $1 AND bucket_key_hash = $2 AND window_seconds = $3 AND bucket_start = $4`,
		scope, keyHash, windowSeconds, bucketStart,
	).Scan(&hits)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return hits, nil
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.Exec(ctx, `DELETE FROM rate_limit_buckets WHERE updated_at < $1`, cutoff)
	return err
}
