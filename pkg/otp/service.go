package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/placelist/pkg/email"
	"github.com/dmitrymomot/placelist/pkg/logger"
	"github.com/dmitrymomot/placelist/pkg/magiclink"
	"github.com/dmitrymomot/placelist/pkg/pg"
	"github.com/dmitrymomot/placelist/pkg/ratelimit"
	"github.com/dmitrymomot/placelist/pkg/sanitizer"
)

// ReqContext carries the per-request facts the flow needs: where the
// request came from and which language the UI is in.
type ReqContext struct {
	IP     string
	Subnet string
	Lang   language.Tag
}

// Service issues and verifies email one-time passcodes.
type Service struct {
	storage    Storage
	identities IdentityStore
	limiter    *ratelimit.Limiter
	mailer     email.OTPMailer
	links      *magiclink.Codec
	codeKey    []byte
	cfg        Config
	log        *slog.Logger
	now        func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the OTP challenge manager. codeKey must be
// purpose-derived (signing.Secret.Derive("otp-code")); links must be built
// on its own derived key so the token families stay independent.
func NewService(
	storage Storage,
	identities IdentityStore,
	limiter *ratelimit.Limiter,
	mailer email.OTPMailer,
	links *magiclink.Codec,
	codeKey []byte,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		storage:    storage,
		identities: identities,
		limiter:    limiter,
		mailer:     mailer,
		links:      links,
		codeKey:    codeKey,
		cfg:        cfg,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request issues a new challenge for the email and sends the code.
//
// The cheap structural check runs before anything touches storage or rate
// limits; the per-identity resend cooldown is independent of the IP-based
// limits so one well-behaved user cannot be starved by subnet neighbors,
// and one user cannot spam a mailbox from many IPs.
func (s *Service) Request(ctx context.Context, rawEmail string, rc ReqContext) (RequestResult, error) {
	addr := sanitizer.NormalizeEmail(rawEmail)
	if !sanitizer.IsEmail(addr) {
		return RequestResult{Reason: ReasonInvalidEmail}, nil
	}

	limited, err := s.limiter.ConsumeAll(ctx,
		ratelimit.Rule{Scope: scopeRequestIP, Key: rc.IP, Limit: s.cfg.RequestIPLimit, Window: s.cfg.RequestIPWindow},
		ratelimit.Rule{Scope: scopeRequestSubnet, Key: rc.Subnet, Limit: s.cfg.RequestSubnetLimit, Window: s.cfg.RequestSubnetWindow},
	)
	if err != nil {
		return RequestResult{}, s.translate(err)
	}
	// Telemetry volume is counted regardless of blocking so abuse waves
	// stay visible even while they are being rejected.
	if _, err := s.limiter.Consume(ctx, ratelimit.Telemetry(scopeRequestGlobal, "global", s.cfg.RequestGlobalWindow)); err != nil {
		return RequestResult{}, s.translate(err)
	}
	if limited.Blocked {
		return RequestResult{Reason: ReasonRateLimited, RetryAfter: limited.RetryAfter}, nil
	}

	identity, err := s.identities.LookupActiveIdentity(ctx, addr)
	if err != nil {
		return RequestResult{}, s.translate(err)
	}
	if !identity.Allowed() {
		s.log.Debug("otp request for disallowed identity",
			logger.Component("otp"),
			logger.Email(sanitizer.MaskEmail(addr)),
		)
		return RequestResult{Reason: ReasonNotAllowed}, nil
	}

	now := s.now()
	if live, err := s.storage.LatestLive(ctx, addr); err != nil {
		return RequestResult{}, s.translate(err)
	} else if live != nil {
		if cooldownLeft := live.CreatedAt.Add(s.cfg.ResendCooldown).Sub(now); cooldownLeft > 0 {
			return RequestResult{Reason: ReasonRateLimited, RetryAfter: cooldownLeft}, nil
		}
	}

	code, err := generateCode(s.cfg.CodeLength)
	if err != nil {
		return RequestResult{}, err
	}

	ch := Challenge{
		ID:        uuid.New(),
		Email:     addr,
		CodeHash:  hashCode(s.codeKey, addr, code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Expiry),
	}
	if err := s.storage.ReplaceAndCreate(ctx, ch); err != nil {
		return RequestResult{}, s.translate(err)
	}

	state, err := magiclink.NewState()
	if err != nil {
		return RequestResult{}, err
	}

	linkURL := ""
	if s.cfg.BaseURL != "" {
		token, err := s.links.Encode(addr, code, ch.ExpiresAt, state)
		if err != nil {
			return RequestResult{}, err
		}
		linkURL = fmt.Sprintf("%s/auth/magic-link?token=%s&lang=%s",
			s.cfg.BaseURL, url.QueryEscape(token), url.QueryEscape(rc.Lang.String()))
	}

	if err := s.mailer.SendOTPEmail(ctx, email.OTPEmailParams{
		Email:        addr,
		Code:         code,
		ExpiresIn:    s.cfg.Expiry,
		Lang:         rc.Lang,
		MagicLinkURL: linkURL,
	}); err != nil {
		// A failed delivery must never later succeed via stale state.
		if consumeErr := s.storage.Consume(ctx, ch.ID, ConsumedReplaced); consumeErr != nil {
			s.log.Error("failed to invalidate challenge after send failure",
				logger.Component("otp"),
				logger.Error(consumeErr),
			)
		}
		reason := ReasonDeliveryFailed
		if errors.Is(err, email.ErrProviderUnavailable) {
			reason = ReasonDeliveryUnavailable
		}
		s.log.Warn("otp email delivery failed",
			logger.Component("otp"),
			logger.Email(sanitizer.MaskEmail(addr)),
			logger.Error(err),
		)
		return RequestResult{Reason: reason}, nil
	}

	s.log.Info("otp challenge issued",
		logger.Component("otp"),
		logger.Email(sanitizer.MaskEmail(addr)),
	)

	return RequestResult{
		Reason:          ReasonOK,
		Email:           addr,
		AntiReplayState: state,
		ExpiresAt:       ch.ExpiresAt,
	}, nil
}

// Verify checks a submitted code against the live challenge for the email
// and consumes the challenge on success.
func (s *Service) Verify(ctx context.Context, rawEmail, rawCode string, rc ReqContext) (VerifyResult, error) {
	addr := sanitizer.NormalizeEmail(rawEmail)
	if !sanitizer.IsEmail(addr) {
		return VerifyResult{Reason: ReasonInvalidEmail}, nil
	}

	// Peek, don't consume: an already-blocked origin gets the merged
	// invalid_or_expired answer without learning whether the block is
	// IP-wide or identity-specific.
	for _, rule := range s.verifyRules(addr, rc) {
		res, err := s.limiter.Peek(ctx, rule)
		if err != nil {
			return VerifyResult{}, s.translate(err)
		}
		if res.Blocked {
			return VerifyResult{Reason: ReasonInvalidOrExpired}, nil
		}
	}

	code := normalizeCode(rawCode)
	if !codeShapeOK(code, s.cfg.CodeLength) {
		if err := s.recordVerifyFailure(ctx, addr, rc); err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{Reason: ReasonInvalidCode}, nil
	}

	result := VerifyResult{Reason: ReasonInvalidOrExpired}
	err := s.storage.Mutate(ctx, addr, func(ch *Challenge) error {
		// Re-check the identity while holding the row lock: deactivation
		// between issuance and verification must win.
		identity, err := s.identities.LookupActiveIdentity(ctx, addr)
		if err != nil {
			return err
		}
		if !identity.Allowed() {
			result = VerifyResult{Reason: ReasonNotAllowed}
			return nil
		}

		now := s.now()
		if ch == nil {
			result = VerifyResult{Reason: ReasonInvalidOrExpired}
			return nil
		}
		if !ch.ExpiresAt.After(now) {
			ch.consume(ConsumedExpired, now)
			result = VerifyResult{Reason: ReasonInvalidOrExpired}
			return nil
		}
		if ch.Attempts >= s.cfg.MaxAttempts {
			ch.consume(ConsumedTooManyAttempts, now)
			result = VerifyResult{Reason: ReasonInvalidOrExpired}
			return nil
		}

		submitted := hashCode(s.codeKey, addr, code)
		if subtle.ConstantTimeCompare([]byte(submitted), []byte(ch.CodeHash)) != 1 {
			ch.Attempts++
			if ch.Attempts >= s.cfg.MaxAttempts {
				ch.consume(ConsumedTooManyAttempts, now)
			}
			result = VerifyResult{Reason: ReasonInvalidCode}
			return nil
		}

		ch.consume(ConsumedVerified, now)
		result = VerifyResult{Reason: ReasonOK, Role: identity.Role, Email: addr}
		return nil
	})
	if err != nil {
		return VerifyResult{}, s.translate(err)
	}

	if result.OK() {
		s.log.Info("otp verified",
			logger.Component("otp"),
			logger.Email(sanitizer.MaskEmail(addr)),
			logger.Role(result.Role),
		)
		return result, nil
	}

	// Every caller-fault failure counts against the verification-failure
	// limits; structural ones were already rejected above without counting.
	if err := s.recordVerifyFailure(ctx, addr, rc); err != nil {
		return VerifyResult{}, err
	}
	return result, nil
}

func (s *Service) verifyRules(addr string, rc ReqContext) []ratelimit.Rule {
	return []ratelimit.Rule{
		{Scope: scopeVerifyIP, Key: rc.IP, Limit: s.cfg.VerifyIPLimit, Window: s.cfg.VerifyIPWindow},
		{Scope: scopeVerifyEmailIP, Key: addr + "|" + rc.IP, Limit: s.cfg.VerifyEmailIPLimit, Window: s.cfg.VerifyEmailIPWindow},
	}
}

func (s *Service) recordVerifyFailure(ctx context.Context, addr string, rc ReqContext) error {
	if _, err := s.limiter.ConsumeAll(ctx, s.verifyRules(addr, rc)...); err != nil {
		return s.translate(err)
	}
	return nil
}

// translate converts the recognizable "storage not provisioned" error class
// into the degraded-mode sentinel; everything else propagates unchanged.
func (s *Service) translate(err error) error {
	if pg.IsSchemaMissingError(err) {
		return fmt.Errorf("%w: %w", ErrStorageNotProvisioned, err)
	}
	return err
}
