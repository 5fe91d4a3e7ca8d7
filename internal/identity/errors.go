package identity

import "errors"

// ErrIdentityNotFound is returned by write operations targeting an email
// that has no identity row.
var ErrIdentityNotFound = errors.New("identity not found")
