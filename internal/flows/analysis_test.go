package flows_test

import (
	"reflect"
	"testing"

	"github.com/jonjonssons/sacore-ai-web-sub002/internal/flows"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
)

func TestDecodeAnalysis_ListBreakdownAndCurrentExperience(t *testing.T) {
	t.Parallel()

	ev := events(t, `{"type":"result","profileId":"p1","analysis":{"score":82.5,"description":" strong fit ",
		"breakdown":[{"criterion":"Go","status":"match","reason":"5 years"},{"name":"Remote","result":"partial","reasoning":"hybrid"}]},
		"enrichedData":{"fullName":"Old Name","location":"Oslo",
		"experience":[{"title":"Engineer","company":"Past AS"},{"title":"Staff Engineer","companyName":"Now AB","isCurrent":true}],
		"social":{"firstName":"Ada","lastName":"Lovelace","location":"Stockholm"}}}`)[0]

	loc, p, err := flows.DecodeAnalysis(ev)
	if err != nil {
		t.Fatalf("DecodeAnalysis: %v", err)
	}
	if loc.ProfileID != "p1" {
		t.Fatalf("locator=%+v", loc)
	}
	wantAnalysis := candidate.Analysis{
		Score:       82.5,
		Description: "strong fit",
		Breakdown: []candidate.BreakdownItem{
			{Criterion: "Go", Status: "match", Reason: "5 years"},
			{Criterion: "Remote", Status: "partial", Reason: "hybrid"},
		},
	}
	if !reflect.DeepEqual(p.Analysis, wantAnalysis) {
		t.Fatalf("analysis=%+v", p.Analysis)
	}
	wantEnriched := flows.Enriched{
		FullName:  "Old Name",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Title:     "Staff Engineer",
		Company:   "Now AB",
		Location:  "Stockholm",
	}
	if p.Enriched != wantEnriched {
		t.Fatalf("enriched=%+v", p.Enriched)
	}
}

func TestDecodeAnalysis_ObjectBreakdownAndStringScore(t *testing.T) {
	t.Parallel()

	ev := events(t, `{"type":"result","identifier":"https://linkedin.com/in/ada","analysis":{"score":"71",
		"breakdown":{"Remote":{"status":"no"},"Go":{"status":"match","reason":"lots"}}},
		"enrichedData":{"firstName":"Ada","lastName":"L","experience":[{"title":"Dev","company":"First"},{"title":"Lead","company":"Second"}]}}`)[0]

	_, p, err := flows.DecodeAnalysis(ev)
	if err != nil {
		t.Fatalf("DecodeAnalysis: %v", err)
	}
	if p.Analysis.Score != 71 {
		t.Fatalf("score=%v", p.Analysis.Score)
	}
	want := []candidate.BreakdownItem{
		{Criterion: "Go", Status: "match", Reason: "lots"},
		{Criterion: "Remote", Status: "no"},
	}
	if !reflect.DeepEqual(p.Analysis.Breakdown, want) {
		t.Fatalf("breakdown=%+v", p.Analysis.Breakdown)
	}
	if p.Enriched.FullName != "Ada L" || p.Enriched.Title != "Dev" || p.Enriched.Company != "First" {
		t.Fatalf("enriched=%+v", p.Enriched)
	}
}

func TestDecodeAnalysis_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "no_locator", raw: `{"type":"result","analysis":{"score":1}}`},
		{name: "no_analysis", raw: `{"type":"result","profileId":"p1"}`},
		{name: "bad_score", raw: `{"type":"result","profileId":"p1","analysis":{"score":"high"}}`},
		{name: "bad_breakdown", raw: `{"type":"result","profileId":"p1","analysis":{"score":1,"breakdown":"yes"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := flows.DecodeAnalysis(events(t, tt.raw)[0]); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestApplyAnalysis_KeepsExistingFieldsWhenEnrichedIsEmpty(t *testing.T) {
	t.Parallel()

	rec := candidate.Record{ID: "1", FullName: "Kept", Company: "Kept AB"}
	patch := flows.AnalysisPatch{
		Analysis: candidate.Analysis{Score: 50, Breakdown: []candidate.BreakdownItem{{Criterion: "Go"}}},
		Enriched: flows.Enriched{Title: "CTO"},
	}
	out := flows.ApplyAnalysis(&rec, patch, reconcile.OriginProvider)
	if out.Result != reconcile.ResultUpdated || out.Persist {
		t.Fatalf("outcome=%+v", out)
	}
	if rec.FullName != "Kept" || rec.Company != "Kept AB" || rec.Title != "CTO" {
		t.Fatalf("record=%+v", rec)
	}
	if rec.Analysis == nil || rec.Analysis.Score != 50 {
		t.Fatalf("analysis=%+v", rec.Analysis)
	}
	// The record owns its breakdown slice.
	patch.Analysis.Breakdown[0].Criterion = "changed"
	if rec.Analysis.Breakdown[0].Criterion != "Go" {
		t.Fatalf("breakdown aliases the patch")
	}
}

func TestRequests(t *testing.T) {
	t.Parallel()

	records := []candidate.Record{
		{ID: "1", ProviderUID: "uid-1", FullName: "Ada Byron Lovelace", Company: "Engines"},
		{ID: "2", LinkedInURL: " https://linkedin.com/in/jane ", FirstName: "Jane", LastName: "Doe"},
		{ID: "3"},
	}

	email, targets := flows.EmailRequest(records)
	if !reflect.DeepEqual(email.ProfileIDs, []string{"uid-1"}) || !reflect.DeepEqual(email.LinkedInURLs, []string{"https://linkedin.com/in/jane"}) {
		t.Fatalf("email request ids=%v urls=%v", email.ProfileIDs, email.LinkedInURLs)
	}
	if len(email.ProfileData) != 3 || email.ProfileData[0].FirstName != "Ada" || email.ProfileData[0].LastName != "Byron Lovelace" {
		t.Fatalf("profile data=%+v", email.ProfileData)
	}
	wantTargets := []reconcile.Target{
		{RecordID: "1", Origin: reconcile.OriginProvider},
		{RecordID: "2", Origin: reconcile.OriginURL},
		{RecordID: "3", Origin: reconcile.OriginURL},
	}
	if !reflect.DeepEqual(targets, wantTargets) {
		t.Fatalf("targets=%+v", targets)
	}

	analysis, _ := flows.AnalysisRequest(records, []string{" Go ", "", "Remote"})
	if !reflect.DeepEqual(analysis.Criteria, []string{"Go", "Remote"}) || len(analysis.Profiles) != 3 {
		t.Fatalf("analysis request=%+v", analysis)
	}
	if analysis.Profiles[0].ProfileID != "uid-1" || analysis.Profiles[2].ProfileID != "3" {
		t.Fatalf("analysis profiles=%+v", analysis.Profiles)
	}
}

func TestPending(t *testing.T) {
	t.Parallel()

	records := []candidate.Record{
		{ID: "done-email", Email: "a@x.com"},
		{ID: "no-email", Email: candidate.NoEmailsFound, LinkedInURL: "https://linkedin.com/in/x"},
		{ID: "no-url", LinkedInURLStatus: candidate.LinkedInURLStatusNoURLFound},
		{ID: "failed-url", LinkedInURLStatus: candidate.LinkedInURLStatusFailed, Analysis: &candidate.Analysis{}},
	}
	ids := func(rs []candidate.Record) []string {
		out := []string{}
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	if got := ids(flows.Pending(reconcile.KindEmail, records)); !reflect.DeepEqual(got, []string{"no-url", "failed-url"}) {
		t.Fatalf("email pending=%v", got)
	}
	if got := ids(flows.Pending(reconcile.KindLinkedIn, records)); !reflect.DeepEqual(got, []string{"done-email", "failed-url"}) {
		t.Fatalf("linkedin pending=%v", got)
	}
	if got := ids(flows.Pending(reconcile.KindAnalysis, records)); !reflect.DeepEqual(got, []string{"done-email", "no-email", "no-url"}) {
		t.Fatalf("analysis pending=%v", got)
	}
}
