package sessiontoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Payload versions. Each version has its own decoder; the outer Decode
// dispatches on the prefix so adding a v3 format is a closed change.
const (
	versionLegacy  = "v1" // role only, kept for tokens minted before the OTP rollout
	versionCurrent = "v2" // role, auth method, email
)

const (
	fieldSep = "|"
	sigSep   = "." // not producible by the payload encoding (enum fields + base64url)
)

// Codec encodes sessions into signed opaque strings suitable for a cookie
// value and decodes them back. The key should be purpose-derived, e.g.
// signing.Secret.Derive("session-token").
type Codec struct {
	key []byte
}

// NewCodec creates a session token codec with the given signing key.
func NewCodec(key []byte) *Codec {
	return &Codec{key: key}
}

// Encode serializes and signs the session. It fails only on structurally
// invalid sessions, which indicate a programming error at the call site,
// never on adversarial input.
func (c *Codec) Encode(s Session) (string, error) {
	if !s.valid() {
		return "", ErrInvalidSession
	}

	payload := strings.Join([]string{
		versionCurrent,
		string(s.Role),
		string(s.AuthMethod),
		base64.RawURLEncoding.EncodeToString([]byte(s.Email)),
	}, fieldSep)

	return payload + sigSep + c.sign(payload), nil
}

// Decode verifies and parses a token. Forged, truncated, or otherwise
// invalid cookies are expected adversarial input, so every failure mode
// collapses to the visitor session instead of returning an error.
func (c *Codec) Decode(token string) Session {
	i := strings.LastIndex(token, sigSep)
	if i < 0 {
		return Visitor()
	}
	payload, sig := token[:i], token[i+1:]

	expected, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return Visitor()
	}
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(payload))
	if !hmac.Equal(mac.Sum(nil), expected) {
		return Visitor()
	}

	// Signature is valid from here on; failures below mean a token signed
	// by an older or newer build, still decoded defensively.
	version, rest, ok := strings.Cut(payload, fieldSep)
	if !ok {
		return Visitor()
	}
	switch version {
	case versionCurrent:
		return decodeV2(rest)
	case versionLegacy:
		return decodeV1(rest)
	default:
		return Visitor()
	}
}

// decodeV1 parses the legacy role-only payload: "v1|role".
func decodeV1(rest string) Session {
	role, ok := ParseRole(rest)
	if !ok {
		return Visitor()
	}
	return Session{Role: role}
}

// decodeV2 parses the current payload: "v2|role|method|base64url(email)".
func decodeV2(rest string) Session {
	parts := strings.Split(rest, fieldSep)
	if len(parts) != 3 {
		return Visitor()
	}

	role, ok := ParseRole(parts[0])
	if !ok {
		return Visitor()
	}

	var method AuthMethod
	switch AuthMethod(parts[1]) {
	case MethodNone, MethodOTP:
		method = AuthMethod(parts[1])
	default:
		return Visitor()
	}

	email, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Visitor()
	}

	s := Session{Role: role, AuthMethod: method, Email: string(email)}
	if !s.valid() {
		return Visitor()
	}
	return s
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// EncodeLegacy mints a v1 role-only token. It exists for transition-period
// tests and tooling; new tokens are always v2.
func (c *Codec) EncodeLegacy(role Role) (string, error) {
	if _, ok := ParseRole(string(role)); !ok {
		return "", ErrInvalidSession
	}
	payload := versionLegacy + fieldSep + string(role)
	return payload + sigSep + c.sign(payload), nil
}
