package lifecycle

import (
	"errors"
	"strings"

	"golang.org/x/net/idna"
)

var ErrInvalidDomain = errors.New("invalid domain name")

// NormalizeDomain validates name as a registrable host name and returns its
// lower-case ASCII (punycode) form.
func NormalizeDomain(name string) (string, error) {
	name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	if name == "" {
		return "", ErrInvalidDomain
	}
	ascii, err := idna.Registration.ToASCII(name)
	if err != nil {
		return "", ErrInvalidDomain
	}
	if !strings.Contains(ascii, ".") || len(ascii) > 253 {
		return "", ErrInvalidDomain
	}
	return ascii, nil
}
