// Package auth is the HTTP surface of authentication: OTP request and
// verification endpoints, the magic-link landing endpoint, logout, and the
// session middleware. It owns the mapping from detailed internal outcomes
// to the deliberately coarser external response contract.
package auth
