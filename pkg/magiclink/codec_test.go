package magiclink_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/placelist/pkg/magiclink"
)

var testKey = []byte("magic-link-signing-key-32-bytes!")

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	codec := magiclink.NewCodec(testKey)
	expiresAt := time.Now().Add(15 * time.Minute).Truncate(time.Second)

	token, err := codec.Encode("student@example.com", "123456", expiresAt, "state-value")
	require.NoError(t, err)

	link, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", link.Email)
	assert.Equal(t, "123456", link.Code)
	assert.Equal(t, "state-value", link.State)
	assert.Equal(t, expiresAt.Unix(), link.ExpiresAt.Unix())
}

func TestDecodeExpired(t *testing.T) {
	t.Parallel()

	codec := magiclink.NewCodec(testKey)

	// Correct signature, expiry in the past.
	token, err := codec.Encode("student@example.com", "123456", time.Now().Add(-time.Minute), "state")
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, magiclink.ErrTokenExpired)
}

func TestDecodeExpiryBoundary(t *testing.T) {
	t.Parallel()

	expiresAt := time.Unix(1700000000, 0)
	codec := magiclink.NewCodec(testKey, magiclink.WithClock(func() time.Time { return expiresAt }))

	token, err := codec.Encode("student@example.com", "123456", expiresAt, "state")
	require.NoError(t, err)

	// Expiry exactly at "now" is already invalid.
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, magiclink.ErrTokenExpired)
}

func TestDecodeTampered(t *testing.T) {
	t.Parallel()

	codec := magiclink.NewCodec(testKey)
	token, err := codec.Encode("student@example.com", "123456", time.Now().Add(time.Hour), "state")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 2)

	t.Run("payload mutation", func(t *testing.T) {
		t.Parallel()
		mutated := mutate(parts[0]) + "." + parts[1]
		_, err := codec.Decode(mutated)
		assert.Error(t, err)
	})

	t.Run("signature mutation", func(t *testing.T) {
		t.Parallel()
		mutated := parts[0] + "." + mutate(parts[1])
		_, err := codec.Decode(mutated)
		assert.ErrorIs(t, err, magiclink.ErrSignatureInvalid)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()
		other := magiclink.NewCodec([]byte("a-different-signing-key-32-bytes"))
		_, err := other.Decode(token)
		assert.ErrorIs(t, err, magiclink.ErrSignatureInvalid)
	})
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	codec := magiclink.NewCodec(testKey)

	tests := []string{
		"",
		"no-separator",
		"a.b.c",
		"!!!.###",
	}
	for _, token := range tests {
		_, err := codec.Decode(token)
		assert.Error(t, err, token)
	}
}

func TestDecodeRejectsBadShapes(t *testing.T) {
	t.Parallel()

	codec := magiclink.NewCodec(testKey)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		email string
		code  string
		state string
	}{
		{"not an email", "not-an-email", "123456", "state"},
		{"alphabetic code", "a@b.co", "abcdef", "state"},
		{"code too short", "a@b.co", "123", "state"},
		{"empty state", "a@b.co", "123456", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := codec.Encode(tt.email, tt.code, future, tt.state)
			require.NoError(t, err)

			_, err = codec.Decode(token)
			assert.ErrorIs(t, err, magiclink.ErrInvalidToken)
		})
	}
}

func TestNewState(t *testing.T) {
	t.Parallel()

	a, err := magiclink.NewState()
	require.NoError(t, err)
	b, err := magiclink.NewState()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func mutate(s string) string {
	b := []byte(s)
	if b[0] == 'A' {
		b[0] = 'B'
	} else {
		b[0] = 'A'
	}
	return string(b)
}
