package signing_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/placelist/pkg/environment"
	"github.com/dmitrymomot/placelist/pkg/signing"
)

const strongSecret = "0123456789abcdef0123456789abcdef" // 32 chars

func TestResolveProduction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secret  string
		wantErr error
	}{
		{"missing", "", signing.ErrMissingSecret},
		{"whitespace only", "   ", signing.ErrMissingSecret},
		{"placeholder", "changeme", signing.ErrPlaceholderSecret},
		{"placeholder case-insensitive", "ChangeMe", signing.ErrPlaceholderSecret},
		{"too short", "short-secret", signing.ErrSecretTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := signing.Resolve(
				signing.Config{Secret: tt.secret},
				environment.Production,
				slog.New(slog.DiscardHandler),
			)
			require.Error(t, err)
			assert.ErrorIs(t, err, signing.ErrSecretIntegrity)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("strong secret accepted", func(t *testing.T) {
		t.Parallel()

		secret, err := signing.Resolve(
			signing.Config{Secret: strongSecret},
			environment.Production,
			slog.New(slog.DiscardHandler),
		)
		require.NoError(t, err)
		assert.Equal(t, []byte(strongSecret), []byte(secret))
	})
}

func TestResolveDevelopment(t *testing.T) {
	// Not parallel: asserts on the process-wide warn-once behavior.

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	first, err := signing.Resolve(signing.Config{}, environment.Development, log)
	require.NoError(t, err)
	assert.Len(t, []byte(first), signing.MinSecretLength)

	second, err := signing.Resolve(signing.Config{}, environment.Development, log)
	require.NoError(t, err)

	// Random fallback is per-resolution; tokens signed before a restart
	// would not verify after it.
	assert.NotEqual(t, []byte(first), []byte(second))

	// The warning is emitted exactly once per process regardless of how
	// many times resolution runs.
	assert.Equal(t, 1, strings.Count(buf.String(), "missing or weak"))

	t.Run("weak secret kept as-is", func(t *testing.T) {
		secret, err := signing.Resolve(
			signing.Config{Secret: "weak"},
			environment.Development,
			log,
		)
		require.NoError(t, err)
		assert.Equal(t, []byte("weak"), []byte(secret))
	})
}

func TestDerive(t *testing.T) {
	t.Parallel()

	secret := signing.Secret(strongSecret)

	sessionKey := secret.Derive("session-token")
	magicKey := secret.Derive("magic-link")

	assert.Len(t, sessionKey, 32)
	assert.NotEqual(t, sessionKey, magicKey)
	assert.Equal(t, sessionKey, secret.Derive("session-token"))

	other := signing.Secret("another-secret-another-secret-32")
	assert.NotEqual(t, sessionKey, other.Derive("session-token"))
}
