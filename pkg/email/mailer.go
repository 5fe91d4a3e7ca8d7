package email

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/placelist/pkg/sanitizer"
)

// EmailSender represents an interface for sending emails.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`       // Email address of the recipient
	Subject  string `json:"subject"`       // Subject of the email
	BodyHTML string `json:"body_html"`     // HTML body of the email
	Tag      string `json:"tag,omitempty"` // Optional
}

// Validate checks the parameters before handing them to a provider.
func (p SendEmailParams) Validate() error {
	if !sanitizer.IsEmail(p.SendTo) {
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidConfig)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: Subject is required", ErrInvalidConfig)
	}
	if p.BodyHTML == "" {
		return fmt.Errorf("%w: BodyHTML is required", ErrInvalidConfig)
	}
	return nil
}
