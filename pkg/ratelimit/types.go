package ratelimit

import (
	"math"
	"time"
)

// Rule describes one counter: a named scope, the caller-supplied key within
// that scope, and the fixed window it is counted in.
type Rule struct {
	Scope  string
	Key    string
	Limit  int64
	Window time.Duration
}

// telemetryLimit is high enough that a telemetry rule practically never
// blocks while still being countable.
const telemetryLimit = math.MaxInt32

// Telemetry builds a soft rule: consumed for observability, never an
// availability risk.
func Telemetry(scope, key string, window time.Duration) Rule {
	return Rule{Scope: scope, Key: key, Limit: telemetryLimit, Window: window}
}

// Result is the outcome of consuming or peeking a rule.
type Result struct {
	Hits       int64
	Blocked    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the retry hint in whole seconds, floor-bounded
// at 1 so clients never receive a zero back-off.
func (r Result) RetryAfterSeconds() int64 {
	if r.RetryAfter <= 0 {
		return 1
	}
	secs := int64(r.RetryAfter / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
