// Package flows adapts the email, LinkedIn URL and deep-analysis streams to the generic
// reconcile.Flow, and builds the request bodies and loading targets for each.
package flows

import (
	"errors"
	"strings"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/backend"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
)

var errNoLocator = errors.New("result carries no profileId, identifier or linkedinUrl")

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// providerID is the id a record is known by at the provider: its UID, the nested payload uid, or
// failing both its local id.
func providerID(rec candidate.Record) (string, bool) {
	if uid := strings.TrimSpace(rec.ProviderUID); uid != "" {
		return uid, true
	}
	if uid := rec.NestedProviderUID(); uid != "" {
		return uid, true
	}
	return strings.TrimSpace(rec.ID), false
}

func targetFor(rec candidate.Record) reconcile.Target {
	origin := reconcile.OriginURL
	if _, ok := providerID(rec); ok {
		origin = reconcile.OriginProvider
	}
	return reconcile.Target{RecordID: rec.ID, Origin: origin}
}

// EmailRequest builds the email lookup body for records. Provider-known records are sent by id;
// the rest by LinkedIn URL. Records with neither are still sent as profile data so the backend can
// search by name and company.
func EmailRequest(records []candidate.Record) (backend.EmailRequest, []reconcile.Target) {
	req := backend.EmailRequest{
		LinkedInURLs: []string{},
		ProfileIDs:   []string{},
		ProfileData:  []backend.EmailProfile{},
	}
	targets := make([]reconcile.Target, 0, len(records))
	for _, rec := range records {
		url := strings.TrimSpace(rec.LinkedInURL)
		if id, ok := providerID(rec); ok {
			req.ProfileIDs = append(req.ProfileIDs, id)
		} else if url != "" {
			req.LinkedInURLs = append(req.LinkedInURLs, url)
		}
		req.ProfileData = append(req.ProfileData, backend.EmailProfile{
			LinkedInURL:     url,
			FirstName:       firstName(rec),
			LastName:        lastName(rec),
			DomainOrCompany: strings.TrimSpace(rec.Company),
		})
		targets = append(targets, targetFor(rec))
	}
	return req, targets
}

// LinkedInRequest builds the LinkedIn URL lookup body. Records without a provider id are looked up
// by their local id.
func LinkedInRequest(records []candidate.Record) (backend.LinkedInRequest, []reconcile.Target) {
	req := backend.LinkedInRequest{
		ProfileIDs:  []string{},
		ProfileData: []backend.LinkedInProfile{},
	}
	targets := make([]reconcile.Target, 0, len(records))
	for _, rec := range records {
		id, _ := providerID(rec)
		req.ProfileIDs = append(req.ProfileIDs, id)
		req.ProfileData = append(req.ProfileData, backend.LinkedInProfile{
			ProfileID: id,
			FullName:  rec.DisplayName(),
			Company:   strings.TrimSpace(rec.Company),
			Location:  strings.TrimSpace(rec.Location),
		})
		targets = append(targets, targetFor(rec))
	}
	return req, targets
}

// AnalysisRequest builds the deep-analysis body for records against criteria.
func AnalysisRequest(records []candidate.Record, criteria []string) (backend.AnalysisRequest, []reconcile.Target) {
	req := backend.AnalysisRequest{
		Criteria: make([]string, 0, len(criteria)),
		Profiles: make([]backend.AnalysisProfile, 0, len(records)),
	}
	for _, c := range criteria {
		if c = strings.TrimSpace(c); c != "" {
			req.Criteria = append(req.Criteria, c)
		}
	}
	targets := make([]reconcile.Target, 0, len(records))
	for _, rec := range records {
		id, _ := providerID(rec)
		req.Profiles = append(req.Profiles, backend.AnalysisProfile{
			ProfileID:   id,
			LinkedInURL: strings.TrimSpace(rec.LinkedInURL),
			FullName:    rec.DisplayName(),
			Title:       strings.TrimSpace(rec.Title),
			Company:     strings.TrimSpace(rec.Company),
			Location:    strings.TrimSpace(rec.Location),
		})
		targets = append(targets, targetFor(rec))
	}
	return req, targets
}

// Pending filters records that have no outcome yet for kind.
func Pending(kind reconcile.Kind, records []candidate.Record) []candidate.Record {
	out := make([]candidate.Record, 0, len(records))
	for _, rec := range records {
		switch kind {
		case reconcile.KindEmail:
			if rec.HasEmailResult() {
				continue
			}
		case reconcile.KindLinkedIn:
			if strings.TrimSpace(rec.LinkedInURL) != "" || rec.LinkedInURLStatus == candidate.LinkedInURLStatusNoURLFound {
				continue
			}
		case reconcile.KindAnalysis:
			if rec.Analysis != nil {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

func firstName(rec candidate.Record) string {
	if f := strings.TrimSpace(rec.FirstName); f != "" {
		return f
	}
	parts := strings.Fields(rec.FullName)
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

func lastName(rec candidate.Record) string {
	if l := strings.TrimSpace(rec.LastName); l != "" {
		return l
	}
	parts := strings.Fields(rec.FullName)
	if len(parts) > 1 {
		return strings.Join(parts[1:], " ")
	}
	return ""
}
