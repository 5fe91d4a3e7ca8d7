// Package sessiontoken implements the stateless session format carried by
// the session cookie.
//
// A token is a versioned, delimited payload followed by an HMAC-SHA256
// signature: "v2|role|method|base64url(email).base64url(sig)". Decoding is
// total: any tampered, truncated, or unknown-version token yields the
// anonymous visitor session rather than an error, because forged cookies
// are expected adversarial input.
//
// The legacy "v1|role" format remains decodable for the transition period.
package sessiontoken
