package email

import "errors"

var (
	// ErrFailedToSendEmail indicates the provider accepted the request but
	// rejected or failed the send.
	ErrFailedToSendEmail = errors.New("mailer.errors.failed_to_send_email")

	// ErrInvalidConfig indicates missing or malformed mailer configuration.
	ErrInvalidConfig = errors.New("mailer.errors.invalid_config")

	// ErrProviderUnavailable indicates no email provider is configured at all.
	ErrProviderUnavailable = errors.New("mailer.errors.provider_unavailable")
)
