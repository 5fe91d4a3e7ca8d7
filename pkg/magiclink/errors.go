package magiclink

import "errors"

var (
	// ErrInvalidToken covers malformed structure, unknown version, and
	// payloads whose email or code fail the shape check.
	ErrInvalidToken = errors.New("invalid magic link token")

	// ErrSignatureInvalid indicates the token was not signed with our key.
	ErrSignatureInvalid = errors.New("magic link signature mismatch")

	// ErrTokenExpired indicates a well-formed, correctly signed token past
	// its embedded expiry.
	ErrTokenExpired = errors.New("magic link token expired")
)
