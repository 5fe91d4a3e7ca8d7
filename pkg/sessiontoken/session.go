package sessiontoken

// Role is the access level a session asserts.
type Role string

const (
	// RoleVisitor is the zero-value role: unauthenticated traffic and every
	// token that fails verification collapse to it.
	RoleVisitor Role = "visitor"
	// RoleMember is an authenticated listing owner.
	RoleMember Role = "member"
	// RoleAdmin is an authenticated administrator.
	RoleAdmin Role = "admin"
)

// AuthMethod records how a session was established.
type AuthMethod string

const (
	// MethodNone marks sessions with no authentication (visitor).
	MethodNone AuthMethod = ""
	// MethodOTP marks sessions established via email one-time passcode.
	MethodOTP AuthMethod = "otp"
)

// Session is the payload carried by the session cookie. It is never
// persisted server-side: the signed token is the whole state.
type Session struct {
	Role       Role
	AuthMethod AuthMethod
	Email      string
}

// Visitor returns the anonymous session every invalid token decodes to.
func Visitor() Session {
	return Session{Role: RoleVisitor}
}

// IsAuthenticated reports whether the session asserts an authenticated role.
func (s Session) IsAuthenticated() bool {
	return s.Role == RoleMember || s.Role == RoleAdmin
}

// valid reports whether the session is structurally sound: known role and
// method, and authenticated OTP sessions always carry an email.
func (s Session) valid() bool {
	switch s.Role {
	case RoleVisitor, RoleMember, RoleAdmin:
	default:
		return false
	}
	switch s.AuthMethod {
	case MethodNone, MethodOTP:
	default:
		return false
	}
	if s.IsAuthenticated() && s.AuthMethod == MethodOTP && s.Email == "" {
		return false
	}
	return true
}

// ParseRole validates a role string from an untrusted payload.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleVisitor, RoleMember, RoleAdmin:
		return Role(s), true
	default:
		return RoleVisitor, false
	}
}
