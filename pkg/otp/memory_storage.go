package otp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is a mutex-guarded in-process Storage for tests and local
// development. The single mutex gives the same serialization the Postgres
// implementation gets from row locks.
type MemoryStorage struct {
	mu         sync.Mutex
	challenges []*Challenge
	now        func() time.Time
}

// NewMemoryStorage creates an empty in-memory challenge store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{now: time.Now}
}

// SetClock overrides the time source for expiry tests.
func (s *MemoryStorage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStorage) ReplaceAndCreate(ctx context.Context, ch Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, existing := range s.challenges {
		if existing.Email == ch.Email {
			existing.consume(ConsumedReplaced, now)
		}
	}
	s.challenges = append(s.challenges, &ch)
	return nil
}

func (s *MemoryStorage) LatestLive(ctx context.Context, email string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.newestUnconsumed(email)
	if ch == nil || !ch.Live(s.now()) {
		return nil, nil
	}
	copied := *ch
	return &copied, nil
}

func (s *MemoryStorage) Mutate(ctx context.Context, email string, fn func(ch *Challenge) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.newestUnconsumed(email))
}

func (s *MemoryStorage) Consume(ctx context.Context, id uuid.UUID, reason ConsumedReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.challenges {
		if ch.ID == id {
			ch.consume(reason, s.now())
		}
	}
	return nil
}

// Find returns a copy of the challenge by ID, used in tests to inspect
// terminal states.
func (s *MemoryStorage) Find(id uuid.UUID) (Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.challenges {
		if ch.ID == id {
			return *ch, true
		}
	}
	return Challenge{}, false
}

// newestUnconsumed returns the live pointer so Mutate edits stick.
func (s *MemoryStorage) newestUnconsumed(email string) *Challenge {
	var newest *Challenge
	for _, ch := range s.challenges {
		if ch.Email != email || ch.Consumed() {
			continue
		}
		if newest == nil || ch.CreatedAt.After(newest.CreatedAt) {
			newest = ch
		}
	}
	return newest
}
