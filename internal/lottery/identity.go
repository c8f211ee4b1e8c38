// Package lottery implements the rules of the saint/devil daily lottery:
// player identities, the 24-hour rate limit, winner position draws and
// outcome evaluation. Storage and orchestration live in repository and service.
package lottery

import (
	"regexp"
	"strings"
	"unicode"
)

// UnknownIP is the sentinel used when the player's IP cannot be resolved.
const UnknownIP = "unknown"

var phonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)

// Identity is a resolved player identity. Key() is the rate-limit key.
type Identity struct {
	Name  string
	Phone string
	IP    string
}

// NewIdentity normalizes and validates the player data.
// An empty ip degrades to UnknownIP instead of failing.
func NewIdentity(name, phone, ip string) (Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Identity{}, ErrInvalidName
	}

	phone = NormalizePhone(phone)
	if !ValidPhone(phone) {
		return Identity{}, ErrInvalidPhone
	}

	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = UnknownIP
	}

	return Identity{Name: name, Phone: phone, IP: ip}, nil
}

// NormalizePhone strips every whitespace character from phone.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
}

// ValidPhone reports whether a normalized phone has 10 to 15 digits.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Key returns the "phone|ip" identity key.
func (i Identity) Key() string {
	return i.Phone + "|" + i.IP
}

// Resolved reports whether the IP part of the identity is known.
func (i Identity) Resolved() bool {
	return i.IP != "" && i.IP != UnknownIP
}
