package reconcile_test

import (
	"strings"
	"testing"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
)

const uidA = "0123456789abcdef0123456789abcdef"

func fixtureRecords() []candidate.Record {
	return []candidate.Record{
		{ID: "r1", ProviderUID: uidA, LinkedInURL: "https://www.linkedin.com/in/anna"},
		{ID: "r2", LinkedInURL: "https://linkedin.com/in/jane/"},
		{ID: "r3", Provider: &candidate.Provider{UID: "nested-uid"}},
		{ID: "r4"},
		{ID: "r5"},
	}
}

func TestLocate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		loc     reconcile.Locator
		wantIdx int
		wantVia string
	}{
		{name: "profile_id_uid", loc: reconcile.Locator{ProfileID: uidA}, wantIdx: 0, wantVia: "profileId"},
		{name: "profile_id_record_id", loc: reconcile.Locator{ProfileID: "r4"}, wantIdx: 3, wantVia: "profileId"},
		{name: "profile_id_nested", loc: reconcile.Locator{ProfileID: "nested-uid"}, wantIdx: 2, wantVia: "profileId"},
		{name: "identifier_as_uid", loc: reconcile.Locator{Identifier: uidA}, wantIdx: 0, wantVia: "identifier-uid"},
		{name: "identifier_as_url", loc: reconcile.Locator{Identifier: "https://de.linkedin.com/in/Jane"}, wantIdx: 1, wantVia: "identifier-url"},
		{name: "linkedin_url", loc: reconcile.Locator{LinkedInURL: "linkedin.com/in/jane"}, wantIdx: 1, wantVia: "linkedinUrl"},
		{
			name:    "profile_id_beats_incidental_url",
			loc:     reconcile.Locator{ProfileID: uidA, LinkedInURL: "https://linkedin.com/in/jane"},
			wantIdx: 0,
			wantVia: "profileId",
		},
		{
			name:    "unmatched_profile_id_falls_through",
			loc:     reconcile.Locator{ProfileID: "gone", LinkedInURL: "https://linkedin.com/in/jane"},
			wantIdx: 1,
			wantVia: "linkedinUrl",
		},
		{name: "no_match", loc: reconcile.Locator{Identifier: "https://linkedin.com/in/nobody"}, wantIdx: -1},
		{name: "empty_locator", loc: reconcile.Locator{}, wantIdx: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, via, ok := reconcile.Locate(fixtureRecords(), tt.loc, reconcile.DefaultMatchers)
			if idx != tt.wantIdx {
				t.Fatalf("idx=%d want %d", idx, tt.wantIdx)
			}
			if ok != (tt.wantIdx >= 0) {
				t.Fatalf("ok=%v", ok)
			}
			if via != tt.wantVia {
				t.Fatalf("via=%q want %q", via, tt.wantVia)
			}
		})
	}
}

func TestLocate_RecordsWithoutURLsNeverMatchEachOther(t *testing.T) {
	t.Parallel()

	records := []candidate.Record{{ID: "a"}, {ID: "b", LinkedInURL: "   "}}
	for _, loc := range []reconcile.Locator{
		{LinkedInURL: ""},
		{LinkedInURL: "  "},
		{Identifier: ""},
	} {
		if idx, _, ok := reconcile.Locate(records, loc, reconcile.DefaultMatchers); ok {
			t.Fatalf("locator %+v matched record %d", loc, idx)
		}
	}
}

func TestLocate_LongSlugIdentifierMatchesByURL(t *testing.T) {
	t.Parallel()

	slug := strings.Repeat("s", 32)
	records := []candidate.Record{{ID: "a", LinkedInURL: "https://www.linkedin.com/in/" + slug}}
	idx, via, ok := reconcile.Locate(records, reconcile.Locator{Identifier: "/in/" + slug}, reconcile.DefaultMatchers)
	if !ok || idx != 0 || via != "identifier-url" {
		t.Fatalf("idx=%d via=%q ok=%v", idx, via, ok)
	}

	// The bare 32 character slug is taken for a UID and, missing that, compared as a bare value.
	if _, _, ok := reconcile.Locate(records, reconcile.Locator{Identifier: slug}, reconcile.DefaultMatchers); ok {
		t.Fatalf("bare slug should not match a full profile URL")
	}
}

func TestLocatorString(t *testing.T) {
	t.Parallel()

	if got := (reconcile.Locator{Identifier: "x"}).String(); got != "identifier=x" {
		t.Fatalf("got %q", got)
	}
	if !(reconcile.Locator{}).Empty() {
		t.Fatalf("expected empty locator")
	}
}
