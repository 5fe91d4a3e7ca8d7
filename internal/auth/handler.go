package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/placelist/pkg/clientip"
	"github.com/dmitrymomot/placelist/pkg/cookie"
	"github.com/dmitrymomot/placelist/pkg/email"
	"github.com/dmitrymomot/placelist/pkg/logger"
	"github.com/dmitrymomot/placelist/pkg/magiclink"
	"github.com/dmitrymomot/placelist/pkg/otp"
	"github.com/dmitrymomot/placelist/pkg/sessiontoken"
)

// Handler is the authentication HTTP surface: OTP request/verify, the
// magic-link landing endpoint, and logout.
type Handler struct {
	svc      *otp.Service
	sessions *sessiontoken.Codec
	links    *magiclink.Codec
	cookies  *cookie.Manager
	cfg      Config
	log      *slog.Logger
}

// NewHandler wires the auth endpoints.
func NewHandler(
	svc *otp.Service,
	sessions *sessiontoken.Codec,
	links *magiclink.Codec,
	cookies *cookie.Manager,
	cfg Config,
	log *slog.Logger,
) *Handler {
	return &Handler{svc: svc, sessions: sessions, links: links, cookies: cookies, cfg: cfg, log: log}
}

// Router returns the routes mounted under /auth.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/otp/request", h.requestOTP)
	r.Post("/otp/verify", h.verifyOTP)
	r.Get("/magic-link", h.magicLink)
	r.Post("/logout", h.logout)
	r.Get("/session", h.whoami)
	return r
}

func (h *Handler) reqContext(r *http.Request) otp.ReqContext {
	ip := clientip.GetIP(r)
	return otp.ReqContext{
		IP:     ip,
		Subnet: clientip.Subnet(ip),
		Lang:   email.ParseLang(r.URL.Query().Get("lang")),
	}
}

type requestOTPBody struct {
	Email string `json:"email"`
	Lang  string `json:"lang"`
}

func (h *Handler) requestOTP(w http.ResponseWriter, r *http.Request) {
	var body requestOTPBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	rc := h.reqContext(r)
	if body.Lang != "" {
		rc.Lang = email.ParseLang(body.Lang)
	}

	res, err := h.svc.Request(r.Context(), body.Email, rc)
	if err != nil {
		h.log.Error("otp request failed",
			logger.Component("auth"),
			logger.Error(err),
		)
		writeServiceUnavailable(w)
		return
	}
	if !res.OK() {
		writeReason(w, res.Reason, res.RetryAfter)
		return
	}

	// The anti-replay cookie binds the magic link to the browser that
	// requested it; it lives only as long as the challenge.
	h.cookies.Set(w, h.cfg.StateCookieName, res.AntiReplayState,
		cookie.WithMaxAge(int(time.Until(res.ExpiresAt)/time.Second)),
	)

	writeData(w, http.StatusOK, map[string]any{
		"email":      res.Email,
		"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type verifyOTPBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var body verifyOTPBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	res, err := h.svc.Verify(r.Context(), body.Email, body.Code, h.reqContext(r))
	if err != nil {
		h.log.Error("otp verify failed",
			logger.Component("auth"),
			logger.Error(err),
		)
		writeServiceUnavailable(w)
		return
	}
	if !res.OK() {
		writeReason(w, res.Reason, 0)
		return
	}

	if err := h.establishSession(w, res); err != nil {
		h.log.Error("session encode failed",
			logger.Component("auth"),
			logger.Error(err),
		)
		writeServiceUnavailable(w)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"role":  res.Role,
		"email": res.Email,
	})
}

// magicLink handles the clickable variant: same verification path as a
// typed code, but the challenge arrives inside a signed token and must be
// accompanied by the anti-replay cookie set at issuance.
func (h *Handler) magicLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Decode(r.URL.Query().Get("token"))
	if err != nil {
		h.redirectFailure(w, r, linkFailureCode(err))
		return
	}

	state, err := h.cookies.Get(r, h.cfg.StateCookieName)
	if err != nil || subtle.ConstantTimeCompare([]byte(state), []byte(link.State)) != 1 {
		h.redirectFailure(w, r, "invalid_or_expired")
		return
	}

	res, err := h.svc.Verify(r.Context(), link.Email, link.Code, h.reqContext(r))
	if err != nil {
		h.log.Error("magic link verify failed",
			logger.Component("auth"),
			logger.Error(err),
		)
		h.redirectFailure(w, r, "service_unavailable")
		return
	}
	if !res.OK() {
		h.redirectFailure(w, r, externalCode(res.Reason))
		return
	}

	if err := h.establishSession(w, res); err != nil {
		h.log.Error("session encode failed",
			logger.Component("auth"),
			logger.Error(err),
		)
		h.redirectFailure(w, r, "service_unavailable")
		return
	}

	http.Redirect(w, r, h.cfg.SuccessRedirect, http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Delete(w, h.cfg.SessionCookieName)
	h.cookies.Delete(w, h.cfg.StateCookieName)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) whoami(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	writeData(w, http.StatusOK, map[string]any{
		"role":        session.Role,
		"auth_method": session.AuthMethod,
		"email":       session.Email,
	})
}

// establishSession mints the session token and sets the session cookie,
// retiring the anti-replay cookie alongside.
func (h *Handler) establishSession(w http.ResponseWriter, res otp.VerifyResult) error {
	token, err := h.sessions.Encode(sessiontoken.Session{
		Role:       res.Role,
		AuthMethod: sessiontoken.MethodOTP,
		Email:      res.Email,
	})
	if err != nil {
		return err
	}

	h.cookies.Set(w, h.cfg.SessionCookieName, token,
		cookie.WithMaxAge(int(h.cfg.SessionTTL/time.Second)),
	)
	h.cookies.Delete(w, h.cfg.StateCookieName)
	return nil
}

func (h *Handler) redirectFailure(w http.ResponseWriter, r *http.Request, code string) {
	dest := h.cfg.FailureRedirect
	if u, err := url.Parse(dest); err == nil {
		q := u.Query()
		q.Set("error", code)
		u.RawQuery = q.Encode()
		dest = u.String()
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func linkFailureCode(err error) string {
	if errors.Is(err, magiclink.ErrTokenExpired) {
		return "invalid_or_expired"
	}
	return "invalid_link"
}

// externalCode is the redirect-flavored counterpart of writeReason: same
// merging, expressed as a query-parameter code instead of a JSON body.
func externalCode(reason otp.Reason) string {
	switch reason {
	case otp.ReasonInvalidEmail, otp.ReasonNotAllowed:
		return "invalid_email"
	case otp.ReasonRateLimited:
		return "rate_limited"
	case otp.ReasonInvalidCode:
		return "invalid_code"
	case otp.ReasonInvalidOrExpired:
		return "invalid_or_expired"
	default:
		return "internal"
	}
}
