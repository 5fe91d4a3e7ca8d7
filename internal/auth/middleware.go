package auth

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/placelist/pkg/cookie"
	"github.com/dmitrymomot/placelist/pkg/logger"
	"github.com/dmitrymomot/placelist/pkg/otp"
	"github.com/dmitrymomot/placelist/pkg/sanitizer"
	"github.com/dmitrymomot/placelist/pkg/sessiontoken"
)

// Middleware decodes the session cookie and re-validates the identity on
// every request, so deactivating an account takes effect on the account's
// next request rather than at cookie expiry.
type Middleware struct {
	codec      *sessiontoken.Codec
	identities otp.IdentityStore
	cookies    *cookie.Manager
	cfg        Config
	log        *slog.Logger
}

// NewMiddleware creates the session middleware.
func NewMiddleware(codec *sessiontoken.Codec, identities otp.IdentityStore, cookies *cookie.Manager, cfg Config, log *slog.Logger) *Middleware {
	return &Middleware{codec: codec, identities: identities, cookies: cookies, cfg: cfg, log: log}
}

// Sessions resolves the request's session and stores it in the context.
// A missing, invalid, or forged cookie reads as visitor; so does a valid
// cookie whose identity is gone or inactive.
func (m *Middleware) Sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := sessiontoken.Visitor()

		if raw, err := m.cookies.Get(r, m.cfg.SessionCookieName); err == nil {
			session = m.codec.Decode(raw)
		}

		if session.IsAuthenticated() {
			identity, err := m.identities.LookupActiveIdentity(r.Context(), session.Email)
			if err != nil {
				// Fail closed: a session we cannot re-validate grants
				// nothing, but the cookie survives the outage.
				m.log.Error("session identity recheck failed",
					logger.Component("auth"),
					logger.Error(err),
				)
				session = sessiontoken.Visitor()
			} else if !identity.Allowed() || identity.Role != session.Role {
				m.cookies.Delete(w, m.cfg.SessionCookieName)
				m.log.Info("session collapsed to visitor",
					logger.Component("auth"),
					logger.Email(sanitizer.MaskEmail(session.Email)),
				)
				session = sessiontoken.Visitor()
			}
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// RequireRole rejects requests whose session does not carry one of the
// given roles. Mount after Sessions.
func RequireRole(roles ...sessiontoken.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			for _, role := range roles {
				if session.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "sign in to continue")
		})
	}
}
