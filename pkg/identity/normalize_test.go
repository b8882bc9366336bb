package identity_test

import (
	"testing"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/identity"
)

func TestNormalizeLinkedInURL_Equivalence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    string
		b    string
	}{
		{name: "regional_host", a: "https://de.linkedin.com/in/jane-doe", b: "https://www.linkedin.com/in/jane-doe"},
		{name: "trailing_slash", a: "https://linkedin.com/in/jane/", b: "https://linkedin.com/in/jane"},
		{name: "case", a: "https://www.LinkedIn.com/in/Jane-Doe", b: "https://linkedin.com/in/jane-doe"},
		{name: "percent_encoding", a: "https://www.linkedin.com/in/j%C3%B6rg-m%C3%BCller", b: "https://linkedin.com/in/jörg-müller"},
		{name: "percent_encoding_upper_hex", a: "https://linkedin.com/in/J%C3%96RG", b: "https://linkedin.com/in/j%c3%b6rg/"},
		{name: "query_and_fragment", a: "https://linkedin.com/in/jane?trk=people#about", b: "https://linkedin.com/in/jane"},
		{name: "schemeless", a: "www.linkedin.com/in/jane/", b: "https://linkedin.com/in/jane"},
		{name: "http_vs_https", a: "http://linkedin.com/in/jane", b: "https://uk.linkedin.com/in/jane"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			na := identity.NormalizeLinkedInURL(tt.a)
			nb := identity.NormalizeLinkedInURL(tt.b)
			if na == "" || na != nb {
				t.Fatalf("normalize(%q)=%q normalize(%q)=%q, want equal and non-empty", tt.a, na, tt.b, nb)
			}
		})
	}
}

func TestNormalizeLinkedInURL_Distinct(t *testing.T) {
	t.Parallel()

	a := identity.NormalizeLinkedInURL("https://linkedin.com/in/jane")
	b := identity.NormalizeLinkedInURL("https://linkedin.com/in/janet")
	if a == b {
		t.Fatalf("distinct profiles normalized equal: %q", a)
	}
}

func TestNormalizeLinkedInURL_Empty(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "\t"} {
		if got := identity.NormalizeLinkedInURL(in); got != "" {
			t.Fatalf("normalize(%q)=%q, want empty", in, got)
		}
	}
}

func TestNormalizeLinkedInURL_Value(t *testing.T) {
	t.Parallel()

	got := identity.NormalizeLinkedInURL("https://se.linkedin.com/in/Anna-Svensson/")
	if got != "/in/anna-svensson" {
		t.Fatalf("got %q want %q", got, "/in/anna-svensson")
	}
}

func TestSameProfile_EmptyNeverMatches(t *testing.T) {
	t.Parallel()

	if identity.SameProfile("", "") {
		t.Fatalf("two empty urls must not match")
	}
	if identity.SameProfile("", "https://linkedin.com/in/jane") {
		t.Fatalf("empty url must not match a real one")
	}
	if !identity.SameProfile("https://linkedin.com/in/jane", "https://www.linkedin.com/in/jane/") {
		t.Fatalf("expected same profile")
	}
}

func TestLooksLikeProviderUID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{in: "0123456789abcdef0123456789abcdef", want: true},
		{in: "0123456789abcdef", want: false},
		{in: "https://linkedin.com/in/abcdefgh", want: false},
		{in: "linkedin0123456789abcdef01234567", want: false},
		{in: "/in/abcdef0123456789abcdef012345", want: false},
		{in: "", want: false},
	}
	for _, tt := range tests {
		if got := identity.LooksLikeProviderUID(tt.in); got != tt.want {
			t.Fatalf("LooksLikeProviderUID(%q)=%v want %v", tt.in, got, tt.want)
		}
	}
}
