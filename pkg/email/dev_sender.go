package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevSender writes outgoing mail to local files instead of delivering it,
// so the sign-in flow is testable without a Postmark account. Each send
// produces a .html body plus a .json sidecar with the envelope.
type DevSender struct {
	dir string
}

// NewDevSender creates the file-writing sender. The directory is created
// lazily on first send.
func NewDevSender(dir string) EmailSender {
	return &DevSender{dir: dir}
}

type devEnvelope struct {
	SentAt  string `json:"sent_at"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Tag     string `json:"tag,omitempty"`
}

func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create output dir: %w", ErrFailedToSendEmail, err)
	}

	now := time.Now()
	name := now.Format("2006_01_02_150405") + "_" + filenameSafe(firstNonEmpty(params.Tag, params.Subject))

	if err := os.WriteFile(filepath.Join(d.dir, name+".html"), []byte(params.BodyHTML), 0o644); err != nil {
		return fmt.Errorf("%w: write body: %w", ErrFailedToSendEmail, err)
	}

	envelope, err := json.MarshalIndent(devEnvelope{
		SentAt:  now.Format(time.RFC3339),
		To:      params.SendTo,
		Subject: params.Subject,
		Tag:     params.Tag,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal envelope: %w", ErrFailedToSendEmail, err)
	}

	if err := os.WriteFile(filepath.Join(d.dir, name+".json"), envelope, 0o644); err != nil {
		return fmt.Errorf("%w: write envelope: %w", ErrFailedToSendEmail, err)
	}

	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func filenameSafe(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(strings.ReplaceAll(s, " ", "_"), "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return "email"
	}
	return strings.ToLower(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
