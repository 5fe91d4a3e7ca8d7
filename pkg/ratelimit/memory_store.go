package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryBucket struct {
	hits      int64
	updatedAt time.Time
}

// MemoryStore is a mutex-guarded in-process store for tests and
// single-instance development setups.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*memoryBucket)}
}

func (s *MemoryStore) Increment(ctx context.Context, scope, keyHash string, windowSeconds int64, bucketStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey(scope, keyHash, windowSeconds, bucketStart)
	b, ok := s.buckets[k]
	if !ok {
		b = &memoryBucket{}
		s.buckets[k] = b
	}
	b.hits++
	b.updatedAt = time.Now()
	return b.hits, nil
}

func (s *MemoryStore) Hits(ctx context.Context, scope, keyHash string, windowSeconds int64, bucketStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[memoryKey(scope, keyHash, windowSeconds, bucketStart)]
	if !ok {
		return 0, nil
	}
	return b.hits, nil
}

func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, b := range s.buckets {
		if b.updatedAt.Before(cutoff) {
			delete(s.buckets, k)
		}
	}
	return nil
}

// Len returns the number of live buckets, used in cleanup tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func memoryKey(scope, keyHash string, windowSeconds int64, bucketStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d:%d", scope, keyHash, windowSeconds, bucketStart.Unix())
}
