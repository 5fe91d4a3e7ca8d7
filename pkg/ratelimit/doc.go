// Package ratelimit implements fixed-window rate limiting over a pluggable
// store (Postgres, Redis, or in-memory).
//
// Events are counted in non-overlapping, clock-aligned buckets of fixed
// length. Consuming a rule always increments, even when over the limit, so
// abusive callers cannot free capacity by retrying past the boundary. The
// identifying key is HMAC-hashed before storage: raw IPs and emails never
// reach the database.
//
//	limiter := ratelimit.New(store, secret.Derive("ratelimit-key"), cfg)
//	res, err := limiter.Consume(ctx, ratelimit.Rule{
//		Scope:  "otp_request_ip",
//		Key:    ip,
//		Limit:  10,
//		Window: 10 * time.Minute,
//	})
//	if res.Blocked {
//		// tell the caller to retry after res.RetryAfterSeconds()
//	}
//
// Stale buckets are deleted opportunistically from the request path, gated
// by an in-process timestamp; there is no background worker.
package ratelimit
