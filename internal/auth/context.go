package auth

import (
	"context"

	"github.com/dmitrymomot/placelist/pkg/sessiontoken"
)

type ctxKey struct{}

// WithSession returns a context carrying the session.
func WithSession(ctx context.Context, s sessiontoken.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFromContext returns the session placed by the middleware. Requests
// that never passed through it read as visitor.
func SessionFromContext(ctx context.Context) sessiontoken.Session {
	if s, ok := ctx.Value(ctxKey{}).(sessiontoken.Session); ok {
		return s
	}
	return sessiontoken.Visitor()
}
