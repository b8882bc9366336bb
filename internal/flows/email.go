package flows

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/stream"
)

// Email result statuses.
const (
	EmailSuccess    = "success"
	EmailNoContacts = "no_contacts"
	EmailFailed     = "failed"
)

// EmailPatch is a decoded email result.
type EmailPatch struct {
	Status string
	Emails []string
}

type emailAddress struct {
	Value string `json:"value"`
	Email string `json:"email"`
}

type emailResult struct {
	ProfileID   string         `json:"profileId"`
	Identifier  string         `json:"identifier"`
	LinkedInURL string         `json:"linkedinUrl"`
	Status      string         `json:"status"`
	Emails      []emailAddress `json:"emails"`
}

// Email returns the email lookup flow.
func Email(logger *zap.Logger) reconcile.Flow[EmailPatch] {
	return reconcile.Flow[EmailPatch]{
		Kind:   reconcile.KindEmail,
		Decode: DecodeEmail,
		Apply:  ApplyEmail,
		Logger: logger,
	}
}

func DecodeEmail(ev stream.Event) (reconcile.Locator, EmailPatch, error) {
	var body emailResult
	if err := ev.Decode(&body); err != nil {
		return reconcile.Locator{}, EmailPatch{}, err
	}
	loc := reconcile.Locator{
		ProfileID:   strings.TrimSpace(body.ProfileID),
		Identifier:  strings.TrimSpace(body.Identifier),
		LinkedInURL: strings.TrimSpace(body.LinkedInURL),
	}
	if loc.Empty() {
		return loc, EmailPatch{}, errNoLocator
	}

	patch := EmailPatch{Status: normalizeStatus(body.Status)}
	seen := map[string]bool{}
	for _, e := range body.Emails {
		addr := strings.TrimSpace(e.Value)
		if addr == "" {
			addr = strings.TrimSpace(e.Email)
		}
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			continue
		}
		seen[key] = true
		patch.Emails = append(patch.Emails, addr)
	}
	return loc, patch, nil
}

// ApplyEmail writes the joined address list, or the "No emails found" sentinel. A failed lookup
// leaves the record untouched.
func ApplyEmail(rec *candidate.Record, p EmailPatch, _ reconcile.Origin) reconcile.Outcome {
	switch p.Status {
	case EmailSuccess:
		if len(p.Emails) == 0 {
			rec.Email = candidate.NoEmailsFound
			return reconcile.Outcome{Result: reconcile.ResultEmpty, Persist: true}
		}
		rec.Email = strings.Join(p.Emails, ", ")
		return reconcile.Outcome{Result: reconcile.ResultUpdated, Persist: true}
	case EmailNoContacts:
		rec.Email = candidate.NoEmailsFound
		return reconcile.Outcome{Result: reconcile.ResultEmpty, Persist: true}
	}
	return reconcile.Outcome{Result: reconcile.ResultFailed}
}
