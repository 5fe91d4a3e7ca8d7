package otp_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/placelist/pkg/email"
	"github.com/dmitrymomot/placelist/pkg/magiclink"
	"github.com/dmitrymomot/placelist/pkg/otp"
	"github.com/dmitrymomot/placelist/pkg/ratelimit"
	"github.com/dmitrymomot/placelist/pkg/sessiontoken"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeIdentities struct {
	mu   sync.Mutex
	byID map[string]otp.Identity
}

func (f *fakeIdentities) LookupActiveIdentity(_ context.Context, email string) (*otp.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byID[email]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (f *fakeIdentities) set(id otp.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id.Email] = id
}

type captureMailer struct {
	mu   sync.Mutex
	sent []email.OTPEmailParams
	err  error
}

func (m *captureMailer) SendOTPEmail(_ context.Context, params email.OTPEmailParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, params)
	return nil
}

func (m *captureMailer) last(t *testing.T) email.OTPEmailParams {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

func testConfig() otp.Config {
	return otp.Config{
		CodeLength:     6,
		Expiry:         15 * time.Minute,
		ResendCooldown: 60 * time.Second,
		MaxAttempts:    5,
		BaseURL:        "https://placelist.app",

		RequestIPLimit:      10,
		RequestIPWindow:     10 * time.Minute,
		RequestSubnetLimit:  50,
		RequestSubnetWindow: 10 * time.Minute,
		RequestGlobalWindow: time.Hour,

		VerifyIPLimit:       20,
		VerifyIPWindow:      15 * time.Minute,
		VerifyEmailIPLimit:  10,
		VerifyEmailIPWindow: 15 * time.Minute,
	}
}

type testEnv struct {
	svc        *otp.Service
	storage    *otp.MemoryStorage
	identities *fakeIdentities
	mailer     *captureMailer
	clock      *testClock
}

func newTestEnv(t *testing.T, cfg otp.Config) *testEnv {
	t.Helper()

	clock := newTestClock()
	storage := otp.NewMemoryStorage()
	storage.SetClock(clock.Now)

	identities := &fakeIdentities{byID: map[string]otp.Identity{
		"student@example.com": {Email: "student@example.com", Role: sessiontoken.RoleMember, Active: true},
		"admin@example.com":   {Email: "admin@example.com", Role: sessiontoken.RoleAdmin, Active: true},
		"dormant@example.com": {Email: "dormant@example.com", Role: sessiontoken.RoleMember, Active: false},
		"lurker@example.com":  {Email: "lurker@example.com", Role: sessiontoken.RoleVisitor, Active: true},
	}}

	mailer := &captureMailer{}
	limiter := ratelimit.New(
		ratelimit.NewMemoryStore(),
		[]byte("test-ratelimit-key-0123456789abcdef"),
		ratelimit.Config{CleanupInterval: 10 * time.Minute, CleanupRetention: 48 * time.Hour},
		ratelimit.WithClock(clock.Now),
	)
	links := magiclink.NewCodec(
		[]byte("test-magiclink-key-0123456789abcdef"),
		magiclink.WithClock(clock.Now),
	)

	svc := otp.NewService(
		storage,
		identities,
		limiter,
		mailer,
		links,
		[]byte("test-otp-code-key-0123456789abcdef"),
		cfg,
		otp.WithClock(clock.Now),
	)

	return &testEnv{svc: svc, storage: storage, identities: identities, mailer: mailer, clock: clock}
}

func reqCtx() otp.ReqContext {
	return otp.ReqContext{IP: "203.0.113.7", Subnet: "203.0.113.0/24", Lang: language.English}
}

func TestRequestInvalidEmail(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	for _, bad := range []string{"", "not-an-email", "a@b", "spaces in@example.com"} {
		res, err := env.svc.Request(context.Background(), bad, reqCtx())
		require.NoError(t, err)
		assert.Equal(t, otp.ReasonInvalidEmail, res.Reason, "input %q", bad)
	}
	assert.Empty(t, env.mailer.sent)
}

func TestRequestDisallowedIdentities(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	tests := []struct {
		name  string
		email string
	}{
		{"unknown", "nobody@example.com"},
		{"inactive", "dormant@example.com"},
		{"visitor role", "lurker@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.svc.Request(context.Background(), tt.email, reqCtx())
			require.NoError(t, err)
			assert.Equal(t, otp.ReasonNotAllowed, res.Reason)
		})
	}
	assert.Empty(t, env.mailer.sent)
}

func TestRequestIssuesChallenge(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	res, err := env.svc.Request(context.Background(), "Student@Example.COM", reqCtx())
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, "student@example.com", res.Email)
	assert.NotEmpty(t, res.AntiReplayState)
	assert.Equal(t, env.clock.Now().Add(15*time.Minute), res.ExpiresAt)

	sent := env.mailer.last(t)
	assert.Equal(t, "student@example.com", sent.Email)
	assert.Len(t, sent.Code, 6)
	assert.Equal(t, 15*time.Minute, sent.ExpiresIn)
	assert.Contains(t, sent.MagicLinkURL, "https://placelist.app/auth/magic-link?token=")
}

func TestRequestOmitsLinkWithoutBaseURL(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.BaseURL = ""
	env := newTestEnv(t, cfg)

	res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Empty(t, env.mailer.last(t).MagicLinkURL)
}

func TestRequestResendCooldown(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	first, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	require.True(t, first.OK())
	firstCode := env.mailer.last(t).Code

	res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	assert.Equal(t, otp.ReasonRateLimited, res.Reason)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.Len(t, env.mailer.sent, 1)

	env.clock.Advance(61 * time.Second)
	res, err = env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	require.True(t, res.OK())

	// The replacement invalidates the first code.
	verify, err := env.svc.Verify(context.Background(), "student@example.com", firstCode, reqCtx())
	require.NoError(t, err)
	if env.mailer.last(t).Code != firstCode {
		assert.Equal(t, otp.ReasonInvalidCode, verify.Reason)
	}
}

func TestRequestIPRateLimit(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.RequestIPLimit = 3
	cfg.ResendCooldown = 0
	env := newTestEnv(t, cfg)

	for i := 0; i < 3; i++ {
		res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
		require.NoError(t, err)
		require.True(t, res.OK(), "request %d should pass", i+1)
	}

	res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	assert.Equal(t, otp.ReasonRateLimited, res.Reason)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// A different origin is unaffected.
	other := otp.ReqContext{IP: "198.51.100.9", Subnet: "198.51.100.0/24", Lang: language.English}
	res, err = env.svc.Request(context.Background(), "admin@example.com", other)
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func TestRequestDeliveryFailure(t *testing.T) {
	t.Parallel()

	t.Run("provider error", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, testConfig())
		env.mailer.err = errors.New("smtp timeout")

		res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
		require.NoError(t, err)
		assert.Equal(t, otp.ReasonDeliveryFailed, res.Reason)

		// The undelivered code must not be verifiable later.
		env.mailer.err = nil
		live, err := env.storage.LatestLive(context.Background(), "student@example.com")
		require.NoError(t, err)
		assert.Nil(t, live)
	})

	t.Run("provider unavailable", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, testConfig())
		env.mailer.err = email.ErrProviderUnavailable

		res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
		require.NoError(t, err)
		assert.Equal(t, otp.ReasonDeliveryUnavailable, res.Reason)
	})
}

func TestVerifyLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	require.True(t, res.OK())
	code := env.mailer.last(t).Code

	verify, err := env.svc.Verify(context.Background(), "student@example.com", code, reqCtx())
	require.NoError(t, err)
	require.True(t, verify.OK())
	assert.Equal(t, sessiontoken.RoleMember, verify.Role)
	assert.Equal(t, "student@example.com", verify.Email)

	// Single use: the same code never works twice.
	verify, err = env.svc.Verify(context.Background(), "student@example.com", code, reqCtx())
	require.NoError(t, err)
	assert.Equal(t, otp.ReasonInvalidOrExpired, verify.Reason)
}

func TestVerifyAcceptsFormattedCode(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	require.True(t, res.OK())
	code := env.mailer.last(t).Code

	spaced := code[:3] + " " + code[3:]
	verify, err := env.svc.Verify(context.Background(), "student@example.com", spaced, reqCtx())
	require.NoError(t, err)
	assert.True(t, verify.OK())
}

func TestVerifyWrongCodeAndAttemptsCap(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	require.True(t, res.OK())
	code := env.mailer.last(t).Code
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 0; i < 5; i++ {
		verify, err := env.svc.Verify(context.Background(), "student@example.com", wrong, reqCtx())
		require.NoError(t, err)
		assert.Equal(t, otp.ReasonInvalidCode, verify.Reason, "attempt %d", i+1)
	}

	// The cap is permanent: even the correct code is dead now, and the
	// caller cannot tell this apart from an expired challenge.
	verify, err := env.svc.Verify(context.Background(), "student@example.com", code, reqCtx())
	require.NoError(t, err)
	assert.Equal(t, otp.ReasonInvalidOrExpired, verify.Reason)
}

func TestVerifyExpiredChallenge(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	require.True(t, res.OK())
	code := env.mailer.last(t).Code

	env.clock.Advance(16 * time.Minute)
	verify, err := env.svc.Verify(context.Background(), "student@example.com", code, reqCtx())
	require.NoError(t, err)
	assert.Equal(t, otp.ReasonInvalidOrExpired, verify.Reason)
}

func TestVerifyMalformedCode(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	for _, bad := range []string{"", "abc", "12345", "1234567", "12345a"} {
		verify, err := env.svc.Verify(context.Background(), "student@example.com", bad, reqCtx())
		require.NoError(t, err)
		assert.Equal(t, otp.ReasonInvalidCode, verify.Reason, "code %q", bad)
	}
}

func TestVerifyNoChallenge(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	verify, err := env.svc.Verify(context.Background(), "student@example.com", "123456", reqCtx())
	require.NoError(t, err)
	assert.Equal(t, otp.ReasonInvalidOrExpired, verify.Reason)
}

func TestVerifyFailureRateLimit(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.VerifyEmailIPLimit = 3
	env := newTestEnv(t, cfg)

	res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	require.True(t, res.OK())
	code := env.mailer.last(t).Code
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	// The limit allows exactly VerifyEmailIPLimit failures; the next check
	// after exceeding it is blocked.
	for i := 0; i < 4; i++ {
		verify, err := env.svc.Verify(context.Background(), "student@example.com", wrong, reqCtx())
		require.NoError(t, err)
		assert.Equal(t, otp.ReasonInvalidCode, verify.Reason)
	}

	// Once over the failure budget the answer collapses to the merged
	// shape regardless of what the caller submits.
	verify, err := env.svc.Verify(context.Background(), "student@example.com", code, reqCtx())
	require.NoError(t, err)
	assert.Equal(t, otp.ReasonInvalidOrExpired, verify.Reason)
}

func TestVerifyDeactivatedIdentity(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	require.True(t, res.OK())
	code := env.mailer.last(t).Code

	env.identities.set(otp.Identity{Email: "student@example.com", Role: sessiontoken.RoleMember, Active: false})

	verify, err := env.svc.Verify(context.Background(), "student@example.com", code, reqCtx())
	require.NoError(t, err)
	assert.Equal(t, otp.ReasonNotAllowed, verify.Reason)
}

func TestMagicLinkRoundTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, testConfig())

	res, err := env.svc.Request(context.Background(), "student@example.com", reqCtx())
	require.NoError(t, err)
	require.True(t, res.OK())

	link := env.mailer.last(t).MagicLinkURL
	_, token, found := strings.Cut(link, "token=")
	require.True(t, found)
	token, _, _ = strings.Cut(token, "&")

	links := magiclink.NewCodec(
		[]byte("test-magiclink-key-0123456789abcdef"),
		magiclink.WithClock(env.clock.Now),
	)
	payload, err := links.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", payload.Email)
	assert.Equal(t, res.AntiReplayState, payload.State)

	// The embedded code verifies like a typed one.
	verify, err := env.svc.Verify(context.Background(), payload.Email, payload.Code, reqCtx())
	require.NoError(t, err)
	assert.True(t, verify.OK())
}
