package otp

import (
	"context"

	"github.com/google/uuid"
)

// Storage persists OTP challenges. Implementations must provide the
// atomicity notes on each method; the service contains no locking of its
// own.
type Storage interface {
	// ReplaceAndCreate marks every unconsumed challenge for the email as
	// consumed with reason "replaced", then inserts the new challenge. Both
	// steps happen in one transaction so concurrent issuance for the same
	// email serializes and at most one live challenge survives.
	ReplaceAndCreate(ctx context.Context, ch Challenge) error

	// LatestLive returns the newest live (unconsumed, unexpired) challenge
	// for the email, or nil when there is none.
	LatestLive(ctx context.Context, email string) (*Challenge, error)

	// Mutate loads the newest unconsumed challenge for the email under a
	// row-level lock, passes it to fn, and persists the fields fn changed
	// (attempts, consumed state) before releasing the lock. fn receives nil
	// when no unconsumed challenge exists; it is still invoked so the
	// caller can decide the outcome while holding the serialization point.
	// Returning an error from fn rolls the transaction back.
	Mutate(ctx context.Context, email string, fn func(ch *Challenge) error) error

	// Consume marks the challenge consumed with the given reason. Already
	// consumed challenges are left untouched.
	Consume(ctx context.Context, id uuid.UUID, reason ConsumedReason) error
}
