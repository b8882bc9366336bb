package reconcile

import (
	"strings"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/identity"
)

// Locator carries the identifiers a result event used to refer to its record. Any field may be
// empty.
type Locator struct {
	ProfileID   string
	Identifier  string
	LinkedInURL string
}

func (l Locator) Empty() bool {
	return strings.TrimSpace(l.ProfileID) == "" &&
		strings.TrimSpace(l.Identifier) == "" &&
		strings.TrimSpace(l.LinkedInURL) == ""
}

// String is used in log lines.
func (l Locator) String() string {
	switch {
	case strings.TrimSpace(l.ProfileID) != "":
		return "profileId=" + strings.TrimSpace(l.ProfileID)
	case strings.TrimSpace(l.Identifier) != "":
		return "identifier=" + strings.TrimSpace(l.Identifier)
	case strings.TrimSpace(l.LinkedInURL) != "":
		return "linkedinUrl=" + strings.TrimSpace(l.LinkedInURL)
	}
	return "<none>"
}

// Matcher finds the record a locator refers to. A matcher whose input field is empty reports no
// match so the chain moves on.
type Matcher struct {
	Name string
	Find func(loc Locator, records []candidate.Record) (int, bool)
}

// ByProfileID matches an explicit provider id against the record's provider UID, its local id
// and the nested provider payload uid.
var ByProfileID = Matcher{
	Name: "profileId",
	Find: func(loc Locator, records []candidate.Record) (int, bool) {
		return findUID(loc.ProfileID, records)
	},
}

// ByIdentifierUID treats an identifier that looks like a provider UID as a profile id.
var ByIdentifierUID = Matcher{
	Name: "identifier-uid",
	Find: func(loc Locator, records []candidate.Record) (int, bool) {
		id := strings.TrimSpace(loc.Identifier)
		if !identity.LooksLikeProviderUID(id) {
			return -1, false
		}
		return findUID(id, records)
	},
}

// ByIdentifierURL normalizes the identifier as a LinkedIn URL.
var ByIdentifierURL = Matcher{
	Name: "identifier-url",
	Find: func(loc Locator, records []candidate.Record) (int, bool) {
		return findURL(loc.Identifier, records)
	},
}

var ByLinkedInURL = Matcher{
	Name: "linkedinUrl",
	Find: func(loc Locator, records []candidate.Record) (int, bool) {
		return findURL(loc.LinkedInURL, records)
	},
}

// DefaultMatchers is the lookup order used for every flow. The first hit wins.
var DefaultMatchers = []Matcher{ByProfileID, ByIdentifierUID, ByIdentifierURL, ByLinkedInURL}

// Locate runs matchers in order and returns the index of the first matching record and the name of
// the matcher that found it.
func Locate(records []candidate.Record, loc Locator, matchers []Matcher) (int, string, bool) {
	for _, m := range matchers {
		if idx, ok := m.Find(loc, records); ok {
			return idx, m.Name, true
		}
	}
	return -1, "", false
}

func findUID(id string, records []candidate.Record) (int, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1, false
	}
	for i := range records {
		r := &records[i]
		if strings.TrimSpace(r.ProviderUID) == id || strings.TrimSpace(r.ID) == id || r.NestedProviderUID() == id {
			return i, true
		}
	}
	return -1, false
}

func findURL(raw string, records []candidate.Record) (int, bool) {
	key := identity.NormalizeLinkedInURL(raw)
	if key == "" {
		return -1, false
	}
	for i := range records {
		if identity.NormalizeLinkedInURL(records[i].LinkedInURL) == key {
			return i, true
		}
	}
	return -1, false
}
