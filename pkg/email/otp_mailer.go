package email

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// OTPEmailParams describes one sign-in code email.
type OTPEmailParams struct {
	Email        string
	Code         string
	ExpiresIn    time.Duration
	Lang         language.Tag
	MagicLinkURL string // optional; omitted when the caller has no public base URL
}

// OTPMailer is the outbound capability the OTP flow depends on. It is a
// black box from the flow's perspective: provider selection lives here.
type OTPMailer interface {
	SendOTPEmail(ctx context.Context, params OTPEmailParams) error
}

// supported are the UI languages the listings app ships; Matcher falls back
// to English for anything else.
var supported = []language.Tag{
	language.English,
	language.German,
	language.French,
	language.Spanish,
}

var langMatcher = language.NewMatcher(supported)

// ParseLang maps a user-supplied language hint onto a supported tag.
func ParseLang(hint string) language.Tag {
	tag, err := language.Parse(hint)
	if err != nil {
		return language.English
	}
	_, idx, conf := langMatcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

type otpStrings struct {
	Subject   string
	Intro     string
	LinkLabel string
	Expiry    string // fmt with minutes
	Ignore    string
}

var otpCatalog = map[language.Tag]otpStrings{
	language.English: {
		Subject:   "Your placelist sign-in code",
		Intro:     "Use this code to sign in:",
		LinkLabel: "Or click to sign in directly",
		Expiry:    "The code expires in %d minutes.",
		Ignore:    "If you did not request this, you can ignore this email.",
	},
	language.German: {
		Subject:   "Dein placelist-Anmeldecode",
		Intro:     "Verwende diesen Code zum Anmelden:",
		LinkLabel: "Oder klicke hier, um dich direkt anzumelden",
		Expiry:    "Der Code läuft in %d Minuten ab.",
		Ignore:    "Wenn du das nicht angefordert hast, kannst du diese E-Mail ignorieren.",
	},
	language.French: {
		Subject:   "Votre code de connexion placelist",
		Intro:     "Utilisez ce code pour vous connecter :",
		LinkLabel: "Ou cliquez pour vous connecter directement",
		Expiry:    "Le code expire dans %d minutes.",
		Ignore:    "Si vous n'avez rien demandé, ignorez cet e-mail.",
	},
	language.Spanish: {
		Subject:   "Tu código de acceso de placelist",
		Intro:     "Usa este código para iniciar sesión:",
		LinkLabel: "O haz clic para iniciar sesión directamente",
		Expiry:    "El código caduca en %d minutos.",
		Ignore:    "Si no lo has solicitado, ignora este correo.",
	},
}

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a1a;">
  <p>{{.Intro}}</p>
  <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
  {{if .MagicLinkURL}}<p><a href="{{.MagicLinkURL}}">{{.LinkLabel}}</a></p>{{end}}
  <p>{{.Expiry}}</p>
  <p style="color: #6b6b6b;">{{.Ignore}}</p>
</body>
</html>`))

// otpMailer renders localized OTP emails and delivers them through the
// configured EmailSender. A nil sender means no provider is configured.
type otpMailer struct {
	sender EmailSender
}

// NewOTPMailer creates the OTP mail capability. Pass a nil sender in
// environments without any provider; sends then fail with
// ErrProviderUnavailable, which the OTP flow reports as a distinct reason.
func NewOTPMailer(sender EmailSender) OTPMailer {
	return &otpMailer{sender: sender}
}

func (m *otpMailer) SendOTPEmail(ctx context.Context, params OTPEmailParams) error {
	if m.sender == nil {
		return ErrProviderUnavailable
	}

	strs, ok := otpCatalog[params.Lang]
	if !ok {
		strs = otpCatalog[language.English]
	}

	minutes := int(params.ExpiresIn.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	var body strings.Builder
	err := otpTemplate.Execute(&body, struct {
		Intro, Code, MagicLinkURL, LinkLabel, Expiry, Ignore string
	}{
		Intro:        strs.Intro,
		Code:         params.Code,
		MagicLinkURL: params.MagicLinkURL,
		LinkLabel:    strs.LinkLabel,
		Expiry:       fmt.Sprintf(strs.Expiry, minutes),
		Ignore:       strs.Ignore,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}

	return m.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   params.Email,
		Subject:  strs.Subject,
		BodyHTML: body.String(),
		Tag:      "otp-sign-in",
	})
}

// NewOTPMailerFromConfig selects the provider: Postmark when configured,
// the file-writing dev sender when a dev directory is set, nil otherwise.
func NewOTPMailerFromConfig(cfg Config, production bool) (OTPMailer, error) {
	if cfg.Configured() {
		sender, err := NewPostmarkClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewOTPMailer(sender), nil
	}
	if !production && cfg.DevOutputDir != "" {
		return NewOTPMailer(NewDevSender(cfg.DevOutputDir)), nil
	}
	return NewOTPMailer(nil), nil
}
