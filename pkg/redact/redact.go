// Package redact scrubs credentials from strings before they are logged or returned to users.
package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque session tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Stripe secret and restricted keys leak through billing errors relayed by the backend.
	stripeKeyRe = regexp.MustCompile(`\b(sk|rk)_(live|test)_[0-9A-Za-z]+`)

	// Bare JWTs (three base64url segments starting with the "eyJ" header prefix).
	jwtRe = regexp.MustCompile(`\beyJ[0-9A-Za-z_-]+\.[0-9A-Za-z_-]+\.[0-9A-Za-z_-]+`)

	// key=value / key: value forms for tokens and API keys.
	secretKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|gemini[_-]?api[_-]?key|access[_-]?token|token|password)\b\s*[:=]\s*[^\s"',&]+`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = stripeKeyRe.ReplaceAllString(out, "<redacted_stripe_key>")
	out = jwtRe.ReplaceAllString(out, "<redacted_jwt>")
	out = secretKVRe.ReplaceAllString(out, "${1}=<redacted>")
	return strings.TrimSpace(out)
}

// Truncate redacts s and caps it at max bytes, flattening newlines. Used for response-body hints.
func Truncate(b []byte, max int) string {
	if len(b) == 0 {
		return ""
	}
	cut := b
	if max > 0 && len(cut) > max {
		cut = cut[:max]
	}
	s := Secrets(string(cut))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if max > 0 && len(b) > max {
		return s + "..."
	}
	return s
}
