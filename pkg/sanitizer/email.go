package sanitizer

import (
	"net/mail"
	"regexp"
	"strings"
)

var dotRegex = regexp.MustCompile(`\.+`)

// NormalizeEmail lowercases, trims, and consolidates consecutive dots in the
// local part. Invalid-looking input is returned lowercased as-is so the shape
// check still rejects it.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := parts[0]
	domain := parts[1]

	// Consolidate consecutive dots to prevent delivery failures
	local = dotRegex.ReplaceAllString(local, ".")
	local = strings.Trim(local, ".")

	return local + "@" + domain
}

// IsEmail reports whether the value is shaped like a deliverable address:
// parseable by net/mail, bare (no display name), and with a dotted domain.
func IsEmail(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}

	parts := strings.Split(addr.Address, "@")
	if len(parts) != 2 {
		return false
	}
	local, domain := parts[0], parts[1]
	if local == "" || domain == "" {
		return false
	}
	// Require a TLD; "user@localhost" is valid RFC mail but not deliverable
	// from a public web form.
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	return true
}

// MaskEmail hides the local part for logs while keeping the domain readable.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***"
	}
	local := parts[0]
	switch {
	case len(local) <= 1:
		local = "*"
	case len(local) <= 3:
		local = local[:1] + "**"
	default:
		local = local[:2] + "***"
	}
	return local + "@" + parts[1]
}
