package magiclink

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrymomot/placelist/pkg/sanitizer"
)

// version tags the payload format. Bump when the payload shape changes;
// decode rejects anything else.
const version = 1

// codeRegex bounds the embedded passcode shape without knowing the exact
// configured length.
var codeRegex = regexp.MustCompile(`^[0-9]{4,12}$`)

// payload is the wire structure. It is public data: the signature provides
// integrity, not secrecy.
type payload struct {
	Version  int    `json:"v"`
	Email    string `json:"email"`
	Code     string `json:"code"`
	State    string `json:"state"`
	ExpireAt int64  `json:"exp"`
}

// Link is a successfully decoded magic link.
type Link struct {
	Email     string
	Code      string
	State     string
	ExpiresAt time.Time
}

// Codec encodes OTP challenges into clickable, self-expiring URL tokens.
// The key must be purpose-derived (signing.Secret.Derive("magic-link")) so
// magic links and session tokens can never cross-validate.
type Codec struct {
	key []byte
	now func() time.Time
}

// Option configures the codec.
type Option func(*Codec)

// WithClock overrides the time source, used in expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a magic link codec with the given signing key.
func NewCodec(key []byte, opts ...Option) *Codec {
	c := &Codec{key: key, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode builds a signed token embedding the challenge. The token format is
// base64url(JSON payload) + "." + base64url(HMAC-SHA256 over the encoded payload).
func (c *Codec) Encode(email, code string, expiresAt time.Time, state string) (string, error) {
	data, err := json.Marshal(payload{
		Version:  version,
		Email:    email,
		Code:     code,
		State:    state,
		ExpireAt: expiresAt.Unix(),
	})
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding.EncodeToString(data)
	return enc + "." + c.sign(enc), nil
}

// Decode verifies and parses a token. It is pure: consumption of the embedded
// code only happens when it is fed into the OTP verification flow.
func (c *Codec) Decode(token string) (Link, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Link{}, ErrInvalidToken
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Link{}, ErrInvalidToken
	}
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(parts[0]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Link{}, ErrSignatureInvalid
	}

	data, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Link{}, ErrInvalidToken
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Link{}, ErrInvalidToken
	}
	if p.Version != version {
		return Link{}, ErrInvalidToken
	}
	if !sanitizer.IsEmail(p.Email) || !codeRegex.MatchString(p.Code) || p.State == "" {
		return Link{}, ErrInvalidToken
	}

	expiresAt := time.Unix(p.ExpireAt, 0)
	if !expiresAt.After(c.now()) {
		return Link{}, ErrTokenExpired
	}

	return Link{
		Email:     p.Email,
		Code:      p.Code,
		State:     p.State,
		ExpiresAt: expiresAt,
	}, nil
}

func (c *Codec) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// NewState returns a random anti-replay state value. The issuing flow embeds
// it in the token and also sets it as a short-lived cookie; the link is only
// honored when both values match.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
