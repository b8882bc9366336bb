package backend

import "github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"

// Streaming endpoints, relative to the API base URL.
const (
	PathEmailStream    = "enrich/emails/stream"
	PathLinkedInStream = "enrich/linkedin-urls/stream"
	PathAnalysisStream = "analysis/deep/stream"
	PathProfiles       = "profiles"
)

// EmailProfile is the per-candidate hint sent with an email lookup.
type EmailProfile struct {
	LinkedInURL     string `json:"linkedinUrl,omitempty"`
	FirstName       string `json:"firstname,omitempty"`
	LastName        string `json:"lastname,omitempty"`
	DomainOrCompany string `json:"domainOrCompany,omitempty"`
}

// EmailRequest is the body of POST /enrich/emails/stream.
type EmailRequest struct {
	LinkedInURLs []string       `json:"linkedinUrls"`
	ProfileIDs   []string       `json:"profileIds"`
	ProfileData  []EmailProfile `json:"profileData"`
}

// LinkedInProfile is the per-candidate hint sent with a LinkedIn URL lookup.
type LinkedInProfile struct {
	ProfileID string `json:"profileId"`
	FullName  string `json:"fullName,omitempty"`
	Company   string `json:"company,omitempty"`
	Location  string `json:"location,omitempty"`
}

// LinkedInRequest is the body of POST /enrich/linkedin-urls/stream.
type LinkedInRequest struct {
	ProfileIDs  []string          `json:"profileIds"`
	ProfileData []LinkedInProfile `json:"profileData"`
}

// AnalysisProfile identifies one candidate to analyze.
type AnalysisProfile struct {
	ProfileID   string `json:"profileId,omitempty"`
	LinkedInURL string `json:"linkedinUrl,omitempty"`
	FullName    string `json:"fullName,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
}

// AnalysisRequest is the body of POST /analysis/deep/stream.
type AnalysisRequest struct {
	Criteria []string          `json:"criteria"`
	Profiles []AnalysisProfile `json:"profiles"`
}

type profilesResponse struct {
	Profiles []candidate.Record `json:"profiles"`
}
