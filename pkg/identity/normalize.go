// Package identity canonicalizes the identifiers the backend uses to refer to a candidate.
//
// The backend may report a result by local record id, by provider UID, or by LinkedIn URL.
// Normalized values are only ever compared with each other; they are never displayed.
package identity

import (
	"net/url"
	"regexp"
	"strings"
)

// ProviderUIDLength is the length of the opaque ids issued by the contact-data provider.
const ProviderUIDLength = 32

var profilePathRe = regexp.MustCompile(`(?i)/in/([^/?#\s]+)`)

// NormalizeLinkedInURL reduces a LinkedIn profile URL to a comparable key.
//
// Only the path is kept so regional hosts (de.linkedin.com, www.linkedin.com) compare equal.
// The path is percent-decoded, lowercased and stripped of a trailing slash. Input that does not
// parse as an absolute URL falls back to extracting the /in/<slug> segment.
//
// An empty result means "no key": callers must never treat two empty keys as a match.
func NormalizeLinkedInURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return normalizeFallback(raw)
	}
	return cleanPath(u.Path)
}

func normalizeFallback(raw string) string {
	m := profilePathRe.FindStringSubmatch(raw)
	if m == nil {
		// Not recognizably a profile URL. Keep the bare value so identical inputs still match.
		return cleanPath(strings.SplitN(raw, "?", 2)[0])
	}
	return cleanPath("/in/" + m[1])
}

func cleanPath(p string) string {
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	p = strings.ToLower(strings.TrimSpace(p))
	p = strings.TrimRight(p, "/")
	return p
}

// LooksLikeProviderUID reports whether s has the shape of a provider UID rather than a URL.
//
// This is a heuristic: a 32 character LinkedIn slug passed without a host would be
// misclassified. The matcher chain still falls back to URL matching when the UID lookup misses.
func LooksLikeProviderUID(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != ProviderUIDLength {
		return false
	}
	if strings.Contains(strings.ToLower(s), "linkedin") {
		return false
	}
	return !strings.ContainsAny(s, "/ \t:")
}

// SameProfile reports whether two LinkedIn URLs address the same profile.
// Empty keys never match.
func SameProfile(a, b string) bool {
	na := NormalizeLinkedInURL(a)
	if na == "" {
		return false
	}
	return na == NormalizeLinkedInURL(b)
}
