package ratelimit

import "errors"

// ErrInvalidRule indicates a rule with a missing scope/key, non-positive
// limit, or sub-second window.
var ErrInvalidRule = errors.New("invalid rate limit rule")
