package otp

import (
	"time"

	"github.com/google/uuid"
)

// ConsumedReason is the terminal state a challenge ends in. A consumed
// challenge never validates again, whatever the reason.
type ConsumedReason string

const (
	// ConsumedVerified is the terminal success state.
	ConsumedVerified ConsumedReason = "verified"
	// ConsumedReplaced marks challenges superseded by a newer one for the
	// same email, or invalidated after a failed email delivery.
	ConsumedReplaced ConsumedReason = "replaced"
	// ConsumedExpired marks challenges whose expiry passed before a
	// successful verification.
	ConsumedExpired ConsumedReason = "expired"
	// ConsumedTooManyAttempts marks challenges burned by reaching the
	// attempt cap. Reaching it is permanent: a later correct code no
	// longer matters.
	ConsumedTooManyAttempts ConsumedReason = "too_many_attempts"
)

// Challenge is one issued OTP. The code itself is never stored, only its
// keyed hash.
type Challenge struct {
	ID             uuid.UUID
	Email          string
	CodeHash       string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Attempts       int
	ConsumedAt     *time.Time
	ConsumedReason ConsumedReason
}

// Consumed reports whether the challenge reached a terminal state.
func (c *Challenge) Consumed() bool {
	return c.ConsumedAt != nil
}

// Live reports whether the challenge can still be verified: not consumed
// and not past its expiry.
func (c *Challenge) Live(now time.Time) bool {
	return !c.Consumed() && c.ExpiresAt.After(now)
}

// consume transitions the challenge into a terminal state. It is a no-op on
// an already consumed challenge: there are no transitions out of terminal
// states.
func (c *Challenge) consume(reason ConsumedReason, now time.Time) {
	if c.Consumed() {
		return
	}
	c.ConsumedAt = &now
	c.ConsumedReason = reason
}
