package otp

import "time"

// Config holds the OTP flow tunables. Every knob is overridable through the
// environment without code changes.
type Config struct {
	CodeLength     int           `env:"OTP_CODE_LENGTH" envDefault:"6"`
	Expiry         time.Duration `env:"OTP_EXPIRY" envDefault:"15m"`
	ResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN" envDefault:"60s"`
	MaxAttempts    int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`

	// Public base URL for building magic links; empty disables the link in
	// the email (code-only sign-in still works).
	BaseURL string `env:"APP_BASE_URL"`

	// Request-volume limits per network origin.
	RequestIPLimit      int64         `env:"OTP_REQUEST_IP_LIMIT" envDefault:"10"`
	RequestIPWindow     time.Duration `env:"OTP_REQUEST_IP_WINDOW" envDefault:"10m"`
	RequestSubnetLimit  int64         `env:"OTP_REQUEST_SUBNET_LIMIT" envDefault:"50"`
	RequestSubnetWindow time.Duration `env:"OTP_REQUEST_SUBNET_WINDOW" envDefault:"10m"`
	// Global volume is telemetry-only; its window is still configurable so
	// dashboards can align buckets.
	RequestGlobalWindow time.Duration `env:"OTP_REQUEST_GLOBAL_WINDOW" envDefault:"1h"`

	// Verification-failure limits.
	VerifyIPLimit       int64         `env:"OTP_VERIFY_IP_LIMIT" envDefault:"20"`
	VerifyIPWindow      time.Duration `env:"OTP_VERIFY_IP_WINDOW" envDefault:"15m"`
	VerifyEmailIPLimit  int64         `env:"OTP_VERIFY_EMAIL_IP_LIMIT" envDefault:"10"`
	VerifyEmailIPWindow time.Duration `env:"OTP_VERIFY_EMAIL_IP_WINDOW" envDefault:"15m"`
}

// Rate limit scopes. Separate scopes share storage but never share buckets.
const (
	scopeRequestIP     = "otp_request_ip"
	scopeRequestSubnet = "otp_request_subnet"
	scopeRequestGlobal = "otp_request_global"
	scopeVerifyIP      = "otp_verify_fail_ip"
	scopeVerifyEmailIP = "otp_verify_fail_email_ip"
)
