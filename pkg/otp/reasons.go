package otp

import (
	"time"

	"github.com/dmitrymomot/placelist/pkg/sessiontoken"
)

// Reason is the fully detailed internal outcome of an operation. The HTTP
// boundary deliberately maps several of these onto one external response
// shape; the detail is kept here so logging and tests never lose it.
type Reason string

const (
	// ReasonOK is the success outcome.
	ReasonOK Reason = "ok"
	// ReasonInvalidEmail rejects input that is not shaped like an email.
	// Structural failures are never recorded against rate limits: they
	// cannot be used to brute-force anything.
	ReasonInvalidEmail Reason = "invalid_email"
	// ReasonNotAllowed covers absent, inactive, and under-privileged
	// identities. Externally indistinguishable from ReasonInvalidEmail so
	// response shape alone does not enumerate registered emails.
	ReasonNotAllowed Reason = "not_allowed"
	// ReasonRateLimited rejects over-limit requests with a retry hint.
	ReasonRateLimited Reason = "rate_limited"
	// ReasonInvalidCode covers malformed and mismatched codes. The attempt
	// is recorded.
	ReasonInvalidCode Reason = "invalid_code"
	// ReasonInvalidOrExpired merges "no live challenge", "too many
	// attempts", and "verification rate-limited" so the caller cannot tell
	// which applies.
	ReasonInvalidOrExpired Reason = "invalid_or_expired"
	// ReasonDeliveryUnavailable means no email provider is configured.
	ReasonDeliveryUnavailable Reason = "delivery_unavailable"
	// ReasonDeliveryFailed means the provider rejected or errored the send.
	ReasonDeliveryFailed Reason = "delivery_failed"
)

// RequestResult is the outcome of requesting a challenge.
type RequestResult struct {
	Reason     Reason
	RetryAfter time.Duration // set when Reason is ReasonRateLimited

	// Set on success:
	Email           string    // normalized
	AntiReplayState string    // for the caller to bind to a short-lived cookie
	ExpiresAt       time.Time // challenge expiry, echoed to the UI
}

// OK reports whether the challenge was issued and the email sent.
func (r RequestResult) OK() bool { return r.Reason == ReasonOK }

// VerifyResult is the outcome of verifying a code.
type VerifyResult struct {
	Reason Reason

	// Set on success:
	Role  sessiontoken.Role
	Email string // normalized
}

// OK reports whether verification succeeded.
func (r VerifyResult) OK() bool { return r.Reason == ReasonOK }
