// Package magiclink encodes an email OTP challenge into a signed, expiring
// URL token so that clicking the link performs verification without manual
// code entry.
//
// Token format: base64url(JSON payload) + "." + base64url(HMAC-SHA256
// signature over the encoded payload). The signing key is derived with a
// purpose string distinct from session signing, so the two token families
// cannot be confused even though both derive from the same root secret.
//
// Decoding is side-effect-free; single-use semantics come from feeding the
// decoded code into OTP verification, not from the codec.
package magiclink
