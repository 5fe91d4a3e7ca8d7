// Package otp implements email one-time-passcode authentication: issuing a
// challenge, delivering it by email (with an optional magic link), and
// verifying the submitted code.
//
// Challenges are single-use and move through exactly one lifecycle: pending
// until consumed as verified, replaced, expired, or too_many_attempts.
// Requesting a new code consumes the prior one atomically, so at most one
// challenge per email is ever live. Codes are never stored; only an
// HMAC keyed by a purpose-derived secret is persisted.
//
// The service funnels failures into a small set of reasons and deliberately
// merges several of them externally (see Reason) so responses cannot be used
// to enumerate registered emails or probe challenge state.
package otp
