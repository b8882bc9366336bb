package flows

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/stream"
)

// Enriched holds profile fields extracted from an analysis result. Empty fields are left alone on
// the record.
type Enriched struct {
	FullName  string
	FirstName string
	LastName  string
	Title     string
	Company   string
	Location  string
}

// AnalysisPatch is a decoded deep-analysis result.
type AnalysisPatch struct {
	Analysis candidate.Analysis
	Enriched Enriched
}

type experienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	CompanyName string `json:"companyName"`
	Location    string `json:"location"`
	IsCurrent   bool   `json:"isCurrent"`
	Current     bool   `json:"current"`
}

func (e experienceEntry) company() string {
	if c := strings.TrimSpace(e.Company); c != "" {
		return c
	}
	return strings.TrimSpace(e.CompanyName)
}

type socialProfile struct {
	FullName  string `json:"fullName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Headline  string `json:"headline"`
	Location  string `json:"location"`
}

type enrichedData struct {
	FullName   string            `json:"fullName"`
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	Location   string            `json:"location"`
	Experience []experienceEntry `json:"experience"`
	Social     *socialProfile    `json:"social"`
}

type analysisBody struct {
	Score       flexFloat       `json:"score"`
	Description string          `json:"description"`
	Breakdown   json.RawMessage `json:"breakdown"`
}

type analysisResult struct {
	ProfileID    string        `json:"profileId"`
	Identifier   string        `json:"identifier"`
	LinkedInURL  string        `json:"linkedinUrl"`
	EnrichedData *enrichedData `json:"enrichedData"`
	Analysis     *analysisBody `json:"analysis"`
}

// Analysis returns the deep-analysis flow.
func Analysis(logger *zap.Logger) reconcile.Flow[AnalysisPatch] {
	return reconcile.Flow[AnalysisPatch]{
		Kind:   reconcile.KindAnalysis,
		Decode: DecodeAnalysis,
		Apply:  ApplyAnalysis,
		Logger: logger,
	}
}

func DecodeAnalysis(ev stream.Event) (reconcile.Locator, AnalysisPatch, error) {
	var body analysisResult
	if err := ev.Decode(&body); err != nil {
		return reconcile.Locator{}, AnalysisPatch{}, err
	}
	loc := reconcile.Locator{
		ProfileID:   strings.TrimSpace(body.ProfileID),
		Identifier:  strings.TrimSpace(body.Identifier),
		LinkedInURL: strings.TrimSpace(body.LinkedInURL),
	}
	if loc.Empty() {
		return loc, AnalysisPatch{}, errNoLocator
	}
	if body.Analysis == nil {
		return loc, AnalysisPatch{}, fmt.Errorf("analysis result for %s has no analysis", loc)
	}

	breakdown, err := decodeBreakdown(body.Analysis.Breakdown)
	if err != nil {
		return loc, AnalysisPatch{}, err
	}
	patch := AnalysisPatch{
		Analysis: candidate.Analysis{
			Score:       float64(body.Analysis.Score),
			Description: strings.TrimSpace(body.Analysis.Description),
			Breakdown:   breakdown,
		},
	}
	if body.EnrichedData != nil {
		patch.Enriched = extractEnriched(*body.EnrichedData)
	}
	return loc, patch, nil
}

// ApplyAnalysis assigns the analysis and any enriched profile fields.
func ApplyAnalysis(rec *candidate.Record, p AnalysisPatch, _ reconcile.Origin) reconcile.Outcome {
	a := p.Analysis
	if a.Breakdown != nil {
		a.Breakdown = append([]candidate.BreakdownItem(nil), a.Breakdown...)
	}
	rec.Analysis = &a

	assign := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	assign(&rec.FullName, p.Enriched.FullName)
	assign(&rec.FirstName, p.Enriched.FirstName)
	assign(&rec.LastName, p.Enriched.LastName)
	assign(&rec.Title, p.Enriched.Title)
	assign(&rec.Company, p.Enriched.Company)
	assign(&rec.Location, p.Enriched.Location)
	return reconcile.Outcome{Result: reconcile.ResultUpdated}
}

// extractEnriched prefers the social profile for names and location, and the current experience
// entry (else the first) for title and company.
func extractEnriched(d enrichedData) Enriched {
	out := Enriched{
		FullName:  strings.TrimSpace(d.FullName),
		FirstName: strings.TrimSpace(d.FirstName),
		LastName:  strings.TrimSpace(d.LastName),
		Location:  strings.TrimSpace(d.Location),
	}
	if s := d.Social; s != nil {
		pick := func(cur *string, v string) {
			if v = strings.TrimSpace(v); v != "" {
				*cur = v
			}
		}
		pick(&out.FullName, s.FullName)
		pick(&out.FirstName, s.FirstName)
		pick(&out.LastName, s.LastName)
		pick(&out.Location, s.Location)
		if out.Title == "" {
			out.Title = strings.TrimSpace(s.Headline)
		}
	}

	if exp, ok := currentExperience(d.Experience); ok {
		if t := strings.TrimSpace(exp.Title); t != "" {
			out.Title = t
		}
		if c := exp.company(); c != "" {
			out.Company = c
		}
		if out.Location == "" {
			out.Location = strings.TrimSpace(exp.Location)
		}
	}
	if out.FullName == "" && (out.FirstName != "" || out.LastName != "") {
		out.FullName = strings.TrimSpace(out.FirstName + " " + out.LastName)
	}
	return out
}

func currentExperience(entries []experienceEntry) (experienceEntry, bool) {
	for _, e := range entries {
		if e.IsCurrent || e.Current {
			return e, true
		}
	}
	if len(entries) > 0 {
		return entries[0], true
	}
	return experienceEntry{}, false
}

type breakdownEntry struct {
	Criterion string `json:"criterion"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Result    string `json:"result"`
	Reason    string `json:"reason"`
	Reasoning string `json:"reasoning"`
}

func (b breakdownEntry) item(fallbackName string) candidate.BreakdownItem {
	first := func(vals ...string) string {
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
		return ""
	}
	return candidate.BreakdownItem{
		Criterion: first(b.Criterion, b.Name, fallbackName),
		Status:    first(b.Status, b.Result),
		Reason:    first(b.Reason, b.Reasoning),
	}
}

// decodeBreakdown accepts either a list of entries or an object keyed by criterion.
func decodeBreakdown(raw json.RawMessage) ([]candidate.BreakdownItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var entries []breakdownEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode breakdown list: %w", err)
		}
		out := make([]candidate.BreakdownItem, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.item(""))
		}
		return out, nil
	case '{':
		var byName map[string]breakdownEntry
		if err := json.Unmarshal(raw, &byName); err != nil {
			return nil, fmt.Errorf("decode breakdown object: %w", err)
		}
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]candidate.BreakdownItem, 0, len(names))
		for _, name := range names {
			out = append(out, byName[name].item(name))
		}
		return out, nil
	}
	return nil, fmt.Errorf("decode breakdown: unexpected %q", raw[:1])
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("score %q is not a number", s)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}
