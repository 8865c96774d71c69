package utils

import (
	"net/mail"
	"strings"
)

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email parses as a bare address and, when
// domain is non-empty, belongs to that domain.
func ValidEmail(email, domain string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	if domain == "" {
		return true
	}
	return strings.HasSuffix(email, "@"+domain)
}
