// Package urlnorm validates and canonicalizes bookmark URLs.
package urlnorm

import (
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"linkvault/internal/shared/errors"
)

var (
	// Recognizes an explicit http or https scheme prefix, any casing
	schemePrefixRegex = regexp.MustCompile(`(?i)^https?://`)

	// Hostname charset after lowercasing (letters, digits, dots, hyphens)
	hostnameCharsRegex = regexp.MustCompile(`^[a-z0-9.-]+$`)

	// Dotted-quad shape; octet range is checked separately
	ipv4Regex = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)
)

// Normalize validates raw as a bookmark URL and returns its canonical form.
//
// A missing scheme defaults to https. The scheme must end up http or https and
// the lowercased host must be "localhost", a dotted IPv4 address, or a dotted
// hostname of letters, digits, dots and hyphens. Ports, paths, queries and
// fragments pass through; net/url renders the canonical string, so the result
// is stable under re-normalization.
//
// URLs carrying credentials are rejected. IPv6 literals and non-ASCII
// hostnames fail the host charset rule; internationalized names must be given
// pre-encoded (punycode) to be accepted.
func Normalize(raw string) (string, error) {
	if raw == "" {
		return "", errors.NewValidationError("url cannot be empty").WithCode("invalid_url")
	}

	candidate := raw
	if !schemePrefixRegex.MatchString(candidate) {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", errors.NewValidationError("url is not parseable").
			WithCode("invalid_url").
			WithDetail("url", raw).
			WithCause(err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.NewValidationError("url scheme must be http or https").
			WithCode("invalid_url").
			WithDetail("scheme", u.Scheme)
	}

	if u.User != nil {
		return "", errors.NewValidationError("url must not contain credentials").
			WithCode("invalid_url").
			WithDetail("url", raw)
	}

	host := strings.ToLower(u.Hostname())
	if !IsValidHostname(host) {
		return "", errors.NewValidationError("url host is invalid").
			WithCode("invalid_url").
			WithDetail("host", host)
	}

	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}

	return u.String(), nil
}

// IsValidHostname reports whether a lowercased host is acceptable: exactly
// "localhost", a dotted IPv4 address, or a dotted name over [a-z0-9.-].
func IsValidHostname(host string) bool {
	if host == "localhost" {
		return true
	}
	if isIPv4(host) {
		return true
	}
	return isDottedName(host)
}

func isIPv4(host string) bool {
	m := ipv4Regex.FindStringSubmatch(host)
	if m == nil {
		return false
	}
	for _, octet := range m[1:] {
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

func isDottedName(host string) bool {
	if !hostnameCharsRegex.MatchString(host) {
		return false
	}
	if strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return false
	}
	if strings.Contains(host, "..") {
		return false
	}
	return strings.Contains(host, ".")
}
