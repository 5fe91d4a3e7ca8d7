package sessiontoken

import "errors"

// ErrInvalidSession indicates an attempt to encode a structurally invalid
// session, e.g. an authenticated OTP session without an email.
var ErrInvalidSession = errors.New("invalid session")
