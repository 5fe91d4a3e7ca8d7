package auth

import "time"

// Config holds the HTTP-surface tunables.
type Config struct {
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"pl_session"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	StateCookieName   string        `env:"OTP_STATE_COOKIE_NAME" envDefault:"pl_otp_state"`

	// Where the magic-link endpoint sends the browser afterwards.
	SuccessRedirect string `env:"AUTH_SUCCESS_REDIRECT" envDefault:"/"`
	FailureRedirect string `env:"AUTH_FAILURE_REDIRECT" envDefault:"/signin"`
}
