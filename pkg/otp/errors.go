package otp

import "errors"

// ErrStorageNotProvisioned indicates the database is reachable but the
// auth tables do not exist yet. Callers surface it as a degraded-mode
// signal instead of crashing the request; every other storage error
// propagates unchanged.
var ErrStorageNotProvisioned = errors.New("otp storage not provisioned")
