package signing

import "errors"

var (
	// ErrSecretIntegrity wraps any production secret violation. It is fatal
	// by design: callers must abort startup rather than degrade.
	ErrSecretIntegrity = errors.New("signing secret integrity violation")

	// ErrMissingSecret indicates no secret was configured.
	ErrMissingSecret = errors.New("signing secret is not set")

	// ErrSecretTooShort indicates the configured secret is below MinSecretLength.
	ErrSecretTooShort = errors.New("signing secret is too short")

	// ErrPlaceholderSecret indicates the configured secret is a known example value.
	ErrPlaceholderSecret = errors.New("signing secret is a placeholder value")
)
