package ratelimit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/placelist/pkg/logger"
)

// Config holds limiter tunables. Cleanup is opportunistic storage-growth
// mitigation piggybacked on normal traffic; correctness never depends on it.
type Config struct {
	CleanupInterval  time.Duration `env:"RATELIMIT_CLEANUP_INTERVAL" envDefault:"10m"`
	CleanupRetention time.Duration `env:"RATELIMIT_CLEANUP_RETENTION" envDefault:"48h"`
}

// Limiter counts events in clock-aligned fixed windows. The identifying key
// (IP, subnet, email+IP) is HMAC-hashed with a dedicated key before it
// reaches storage, so raw identifiers never appear in the database.
type Limiter struct {
	store   Store
	keyHash []byte
	cfg     Config
	log     *slog.Logger
	now     func() time.Time

	// lastCleanup is a unix timestamp gate. A race here only changes how
	// often cleanup runs, never how events are counted.
	lastCleanup atomic.Int64
}

// Option configures the limiter.
type Option func(*Limiter)

// WithLogger sets the logger used for cleanup failures.
func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a limiter. hashKey should be purpose-derived, e.g.
// signing.Secret.Derive("ratelimit-key").
func New(store Store, hashKey []byte, cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		store:   store,
		keyHash: hashKey,
		cfg:     cfg,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Consume increments the rule's current bucket and reports whether the
// post-increment count exceeds the limit. The increment is never refused:
// over-limit callers keep being counted so retrying past the boundary cannot
// free capacity early.
func (l *Limiter) Consume(ctx context.Context, rule Rule) (Result, error) {
	if err := validate(rule); err != nil {
		return Result{}, err
	}

	now := l.now()
	windowSeconds, bucketStart := bucket(now, rule.Window)

	hits, err := l.store.Increment(ctx, rule.Scope, l.hash(rule.Scope, rule.Key), windowSeconds, bucketStart)
	if err != nil {
		return Result{}, err
	}

	l.maybeCleanup(ctx, now)

	return l.result(rule, hits, now, bucketStart), nil
}

// Peek reports the rule's current state without incrementing.
func (l *Limiter) Peek(ctx context.Context, rule Rule) (Result, error) {
	if err := validate(rule); err != nil {
		return Result{}, err
	}

	now := l.now()
	windowSeconds, bucketStart := bucket(now, rule.Window)

	hits, err := l.store.Hits(ctx, rule.Scope, l.hash(rule.Scope, rule.Key), windowSeconds, bucketStart)
	if err != nil {
		return Result{}, err
	}

	return l.result(rule, hits, now, bucketStart), nil
}

// ConsumeAll consumes every rule and combines the outcomes: blocked if any
// rule blocked, with the most restrictive retry hint. All rules increment
// even when an earlier one blocks, so partial blocking by one scope never
// leaves usage of another scope unrecorded.
func (l *Limiter) ConsumeAll(ctx context.Context, rules ...Rule) (Result, error) {
	var combined Result
	for _, rule := range rules {
		res, err := l.Consume(ctx, rule)
		if err != nil {
			return Result{}, err
		}
		if res.Hits > combined.Hits {
			combined.Hits = res.Hits
		}
		if res.Blocked {
			combined.Blocked = true
			if res.RetryAfter > combined.RetryAfter {
				combined.RetryAfter = res.RetryAfter
			}
		}
	}
	return combined, nil
}

func (l *Limiter) result(rule Rule, hits int64, now, bucketStart time.Time) Result {
	retry := bucketStart.Add(rule.Window).Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return Result{
		Hits:       hits,
		Blocked:    hits > rule.Limit,
		RetryAfter: retry,
	}
}

// hash derives the non-reversible storage key for (scope, key).
func (l *Limiter) hash(scope, key string) string {
	mac := hmac.New(sha256.New, l.keyHash)
	mac.Write([]byte(scope))
	mac.Write([]byte{0})
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// bucket computes the fixed window the moment falls into.
func bucket(now time.Time, window time.Duration) (windowSeconds int64, bucketStart time.Time) {
	windowSeconds = int64(window / time.Second)
	unix := now.Unix()
	return windowSeconds, time.Unix(unix-unix%windowSeconds, 0).UTC()
}

// maybeCleanup deletes stale buckets at most once per cleanup interval.
// The gate is a plain compare-and-swap on an in-process timestamp: losing
// the race only means another request already took the turn.
func (l *Limiter) maybeCleanup(ctx context.Context, now time.Time) {
	if l.cfg.CleanupInterval <= 0 {
		return
	}
	last := l.lastCleanup.Load()
	if now.Unix()-last < int64(l.cfg.CleanupInterval/time.Second) {
		return
	}
	if !l.lastCleanup.CompareAndSwap(last, now.Unix()) {
		return
	}
	if err := l.store.DeleteOlderThan(ctx, now.Add(-l.cfg.CleanupRetention)); err != nil {
		l.log.Warn("rate limit bucket cleanup failed",
			logger.Component("ratelimit"),
			logger.Error(err),
		)
	}
}

func validate(rule Rule) error {
	if rule.Scope == "" || rule.Key == "" {
		return fmt.Errorf("%w: scope and key are required", ErrInvalidRule)
	}
	if rule.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidRule, rule.Limit)
	}
	if rule.Window < time.Second {
		return fmt.Errorf("%w: window must be at least 1s, got %v", ErrInvalidRule, rule.Window)
	}
	return nil
}
