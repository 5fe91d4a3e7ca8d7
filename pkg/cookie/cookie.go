package cookie

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrymomot/placelist/pkg/environment"
)

// Manager writes and reads cookies with consistent security attributes.
// Values are opaque to it; tokens carry their own signatures, so the
// manager adds no crypto of its own.
type Manager struct {
	defaults Options
}

// New creates a manager. In production the Secure attribute defaults on;
// elsewhere it stays off so local plain-HTTP development works.
func New(env environment.Environment, opts ...Option) *Manager {
	defaults := Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   env.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{defaults: applyOptions(defaults, opts)}
}

// Set writes a cookie using the manager defaults overridden by opts.
func (m *Manager) Set(w http.ResponseWriter, name, value string, opts ...Option) {
	options := applyOptions(m.defaults, opts)
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   options.MaxAge,
		Secure:   options.Secure,
		HttpOnly: options.HttpOnly,
		SameSite: options.SameSite,
	})
}

// Get returns the raw cookie value.
func (m *Manager) Get(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieNotFound
		}
		return "", err
	}
	return cookie.Value, nil
}

// Delete expires the cookie. Attributes must match the ones it was set
// with or browsers keep the original.
func (m *Manager) Delete(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     m.defaults.Path,
		Domain:   m.defaults.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.defaults.Secure,
		HttpOnly: m.defaults.HttpOnly,
		SameSite: m.defaults.SameSite,
	})
}
