package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dmitrymomot/placelist/pkg/environment"
	"github.com/dmitrymomot/placelist/pkg/logger"
)

// MinSecretLength is the minimum accepted secret length in production.
// 32 bytes matches the HMAC-SHA256 block-independent key recommendation.
const MinSecretLength = 32

// placeholderSecrets are values that ship in example configs and must never
// reach production.
var placeholderSecrets = []string{
	"changeme",
	"change-me",
	"secret",
	"placeholder",
	"your-secret-here",
}

// Secret is the resolved root signing key. It is read-only after Resolve.
type Secret []byte

// Config holds the signing secret configuration.
type Config struct {
	Secret string `env:"AUTH_SIGNING_SECRET"`
}

// warnOnce guards the non-production weak-secret warning so repeated
// resolution attempts log it at most once per process.
var warnOnce sync.Once

// Resolve validates and returns the root signing secret.
//
// In production a missing, short, or placeholder secret is a fatal
// configuration error: the caller must abort startup. In any other
// environment the same condition is tolerated with a single warning,
// and a missing secret is replaced by a random in-memory one, which
// invalidates all previously signed tokens on restart.
func Resolve(cfg Config, env environment.Environment, log *slog.Logger) (Secret, error) {
	if log == nil {
		log = slog.Default()
	}

	secret := strings.TrimSpace(cfg.Secret)
	weakness := classify(secret)

	if env.IsProduction() && weakness != nil {
		return nil, fmt.Errorf("%w: %w", ErrSecretIntegrity, weakness)
	}

	if weakness != nil {
		warnOnce.Do(func() {
			log.Warn("signing secret is missing or weak, tokens will not survive restarts",
				logger.Component("signing"),
				logger.Error(weakness),
				slog.String("env", env.String()),
			)
		})
		if secret == "" {
			return randomSecret(), nil
		}
	}

	return Secret(secret), nil
}

// classify returns the reason a secret is unfit for production, or nil.
func classify(secret string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	for _, p := range placeholderSecrets {
		if strings.EqualFold(secret, p) {
			return ErrPlaceholderSecret
		}
	}
	if len(secret) < MinSecretLength {
		return ErrSecretTooShort
	}
	return nil
}

func randomSecret() Secret {
	b := make([]byte, MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means the platform is unusable for any
		// cryptographic operation, not just this one.
		panic(fmt.Errorf("signing: crypto/rand unavailable: %w", err))
	}
	return b
}

// Derive returns a purpose-bound subkey so independent token families
// (session cookies, magic links, rate-limit key hashing) cannot validate
// each other's signatures even though they share one root secret.
func (s Secret) Derive(purpose string) []byte {
	mac := hmac.New(sha256.New, s)
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}
