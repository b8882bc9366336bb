// Package candidate defines the candidate record shared by the reconciler, the backend client and
// the CSV tooling.
package candidate

import "strings"

// NoEmailsFound is stored in Record.Email when the provider reported no contacts.
// It is distinct from an empty Email, which means "not fetched yet".
const NoEmailsFound = "No emails found"

// LinkedInURLStatus records a LinkedIn URL lookup that did not produce a URL.
type LinkedInURLStatus string

const (
	LinkedInURLStatusNone       LinkedInURLStatus = ""
	LinkedInURLStatusNoURLFound LinkedInURLStatus = "no_url_found"
	LinkedInURLStatusFailed     LinkedInURLStatus = "failed"
)

// Provider is the nested payload kept from the contact-data provider search response.
type Provider struct {
	UID string `json:"uid,omitempty"`
}

// BreakdownItem is one criterion of a deep analysis.
type BreakdownItem struct {
	Criterion string `json:"criterion"`
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Analysis is the deep-analysis outcome for a record.
type Analysis struct {
	Score       float64         `json:"score"`
	Description string          `json:"description,omitempty"`
	Breakdown   []BreakdownItem `json:"breakdown,omitempty"`
}

// Record is one row in a candidate list.
//
// At least one of ID, ProviderUID or LinkedInURL is populated. Enrichment mutates the record in
// place; the identity fields (other than a back-filled LinkedInURL) never change.
type Record struct {
	ID          string    `json:"id"`
	ProviderUID string    `json:"providerUid,omitempty"`
	Provider    *Provider `json:"provider,omitempty"`

	LinkedInURL       string            `json:"linkedinUrl,omitempty"`
	LinkedInURLStatus LinkedInURLStatus `json:"linkedinUrlStatus,omitempty"`
	Email             string            `json:"email,omitempty"`

	FullName  string `json:"fullName,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Title     string `json:"title,omitempty"`
	Company   string `json:"company,omitempty"`
	Location  string `json:"location,omitempty"`

	Analysis *Analysis `json:"analysis,omitempty"`
}

// NestedProviderUID returns Provider.UID, or "" when there is no provider payload.
func (r Record) NestedProviderUID() string {
	if r.Provider == nil {
		return ""
	}
	return strings.TrimSpace(r.Provider.UID)
}

// DisplayName returns FullName, or first and last name joined.
func (r Record) DisplayName() string {
	if n := strings.TrimSpace(r.FullName); n != "" {
		return n
	}
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}

// HasEmailResult reports whether an email lookup already produced an outcome.
func (r Record) HasEmailResult() bool {
	return strings.TrimSpace(r.Email) != ""
}

// Clone returns a deep copy so snapshots can be handed out without sharing pointers.
func (r Record) Clone() Record {
	out := r
	if r.Provider != nil {
		p := *r.Provider
		out.Provider = &p
	}
	if r.Analysis != nil {
		a := *r.Analysis
		if r.Analysis.Breakdown != nil {
			a.Breakdown = append([]BreakdownItem(nil), r.Analysis.Breakdown...)
		}
		out.Analysis = &a
	}
	return out
}

// CloneAll deep-copies a record list.
func CloneAll(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
