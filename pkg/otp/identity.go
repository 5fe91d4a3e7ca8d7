package otp

import (
	"context"

	"github.com/dmitrymomot/placelist/pkg/sessiontoken"
)

// Identity is the authoritative record of whether an email may receive and
// verify an OTP, and what role a successful verification grants.
type Identity struct {
	Email  string
	Role   sessiontoken.Role
	Active bool
}

// Allowed reports whether the identity may go through the OTP flow.
func (i *Identity) Allowed() bool {
	return i != nil && i.Active &&
		(i.Role == sessiontoken.RoleMember || i.Role == sessiontoken.RoleAdmin)
}

// IdentityStore looks up identities by normalized email. A missing identity
// is (nil, nil), not an error.
type IdentityStore interface {
	LookupActiveIdentity(ctx context.Context, email string) (*Identity, error)
}
