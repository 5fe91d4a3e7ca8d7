package email

// Config holds email service configuration.
// The Postmark tokens are optional to support development environments where
// outbound email is replaced by the file-writing dev sender. SenderEmail and
// SupportEmail establish the sender identity and reply-to behavior for all
// outbound mail.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@placelist.app"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@placelist.app"`
	DevOutputDir         string `env:"EMAIL_DEV_OUTPUT_DIR" envDefault:"./tmp/emails"`
}

// Configured reports whether a real email provider is available.
func (c Config) Configured() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
