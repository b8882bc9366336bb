package flows

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/identity"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/stream"
)

// LinkedIn URL result statuses. The backend uses both spellings of "not found".
const (
	LinkedInSuccess       = "success"
	LinkedInNoURLFound    = "no_url_found"
	LinkedInNoURLFoundAlt = "no_linkedin_url_found"
	LinkedInFailed        = "failed"
)

// LinkedInPatch is a decoded LinkedIn URL result.
type LinkedInPatch struct {
	Status   string
	URL      string
	FullName string
}

type linkedInData struct {
	ProfileID   string `json:"profileId"`
	LinkedInURL string `json:"linkedinUrl"`
	FullName    string `json:"fullName"`
	Status      string `json:"status"`
	Error       string `json:"error"`
}

type linkedInResult struct {
	Data *linkedInData `json:"data"`

	// Some backends flatten the payload; the request identifiers may also sit at the top level.
	ProfileID   string `json:"profileId"`
	Identifier  string `json:"identifier"`
	LinkedInURL string `json:"linkedinUrl"`
	Status      string `json:"status"`
}

// LinkedIn returns the LinkedIn URL lookup flow.
func LinkedIn(logger *zap.Logger) reconcile.Flow[LinkedInPatch] {
	return reconcile.Flow[LinkedInPatch]{
		Kind:   reconcile.KindLinkedIn,
		Decode: DecodeLinkedIn,
		Apply:  ApplyLinkedIn,
		Logger: logger,
	}
}

// DecodeLinkedIn reads a LinkedIn URL result. The discovered URL is the payload, not a locator:
// only the top-level linkedinUrl (the URL a lookup started from) takes part in matching.
func DecodeLinkedIn(ev stream.Event) (reconcile.Locator, LinkedInPatch, error) {
	var body linkedInResult
	if err := ev.Decode(&body); err != nil {
		return reconcile.Locator{}, LinkedInPatch{}, err
	}
	data := linkedInData{ProfileID: body.ProfileID, Status: body.Status}
	if body.Data != nil {
		data = *body.Data
		if strings.TrimSpace(data.ProfileID) == "" {
			data.ProfileID = body.ProfileID
		}
		if strings.TrimSpace(data.Status) == "" {
			data.Status = body.Status
		}
	}

	loc := reconcile.Locator{
		ProfileID:   strings.TrimSpace(data.ProfileID),
		Identifier:  strings.TrimSpace(body.Identifier),
		LinkedInURL: strings.TrimSpace(body.LinkedInURL),
	}
	if body.Data == nil {
		// Flattened payloads carry the discovered URL at the top level.
		loc.LinkedInURL = ""
		data.LinkedInURL = body.LinkedInURL
	}
	if loc.Empty() {
		return loc, LinkedInPatch{}, errNoLocator
	}

	status := normalizeStatus(data.Status)
	if status == "" {
		switch {
		case strings.TrimSpace(data.LinkedInURL) != "":
			status = LinkedInSuccess
		case strings.TrimSpace(data.Error) != "":
			status = LinkedInFailed
		}
	}
	return loc, LinkedInPatch{
		Status:   status,
		URL:      strings.TrimSpace(data.LinkedInURL),
		FullName: strings.TrimSpace(data.FullName),
	}, nil
}

// ApplyLinkedIn back-fills the discovered URL or records why there is none. Only a lookup that
// started from a provider id may replace a URL the record already has.
func ApplyLinkedIn(rec *candidate.Record, p LinkedInPatch, origin reconcile.Origin) reconcile.Outcome {
	switch p.Status {
	case LinkedInSuccess:
		if p.URL == "" {
			rec.LinkedInURLStatus = candidate.LinkedInURLStatusNoURLFound
			return reconcile.Outcome{Result: reconcile.ResultEmpty}
		}
		rec.LinkedInURLStatus = candidate.LinkedInURLStatusNone
		if strings.TrimSpace(rec.FullName) == "" && p.FullName != "" {
			rec.FullName = p.FullName
		}
		existing := strings.TrimSpace(rec.LinkedInURL)
		if existing != "" && origin != reconcile.OriginProvider {
			return reconcile.Outcome{Result: reconcile.ResultUpdated}
		}
		if existing == p.URL || (existing != "" && identity.SameProfile(existing, p.URL)) {
			return reconcile.Outcome{Result: reconcile.ResultUpdated}
		}
		rec.LinkedInURL = p.URL
		return reconcile.Outcome{Result: reconcile.ResultUpdated, Persist: true}
	case LinkedInNoURLFound, LinkedInNoURLFoundAlt:
		rec.LinkedInURLStatus = candidate.LinkedInURLStatusNoURLFound
		return reconcile.Outcome{Result: reconcile.ResultEmpty}
	}
	rec.LinkedInURLStatus = candidate.LinkedInURLStatusFailed
	return reconcile.Outcome{Result: reconcile.ResultFailed}
}
