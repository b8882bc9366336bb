package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/jonjonssons/sacore-ai-web-sub002/internal/analyzer"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/backend"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/worker"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

type Analyzer struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, cfg Config) (*Analyzer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Analyzer{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

type responseSchema struct {
	Score       float64 `json:"score"`
	Description string  `json:"description"`
	Breakdown   []struct {
		Criterion string `json:"criterion"`
		Status    string `json:"status"`
		Reason    string `json:"reason"`
	} `json:"breakdown"`
}

var outputSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score":       {Type: genai.TypeNumber},
		"description": {Type: genai.TypeString},
		"breakdown": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"criterion": {Type: genai.TypeString},
					"status":    {Type: genai.TypeString, Enum: []string{"match", "partial", "no_match", "unknown"}},
					"reason":    {Type: genai.TypeString},
				},
				Required: []string{"criterion", "status", "reason"},
			},
		},
	},
	Required: []string{"score", "description", "breakdown"},
}

func (a *Analyzer) Analyze(ctx context.Context, p backend.AnalysisProfile, criteria []string) (analyzer.Result, error) {
	if strings.TrimSpace(p.ProfileID) == "" && strings.TrimSpace(p.LinkedInURL) == "" {
		return analyzer.Result{}, errors.New("profile has no id or LinkedIn URL")
	}

	resp, err := a.client.Models.GenerateContent(
		ctx,
		a.model,
		genai.Text(buildPrompt(p, criteria)),
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
				{URLContext: &genai.URLContext{}},
			},
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   outputSchema,
		},
	)
	if err != nil {
		return analyzer.Result{}, classifyErr(err)
	}
	return parseResponse(resp.Text(), criteria)
}

func buildPrompt(p backend.AnalysisProfile, criteria []string) string {
	var b strings.Builder
	b.WriteString(`You evaluate job candidates for a recruiter. Use web search and URL context to check the
candidate's public profile against each criterion.

Return ONLY a single JSON object with these keys:
- score (number from 0 to 100; overall fit)
- description (string; two sentences at most)
- breakdown (array; one entry per criterion with criterion, status and reason)

Status is one of: match, partial, no_match, unknown. Use unknown when the public profile does not say.

Candidate:
`)
	field := func(name, v string) {
		if v = strings.TrimSpace(v); v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", name, v)
		}
	}
	field("Name", p.FullName)
	field("Title", p.Title)
	field("Company", p.Company)
	field("Location", p.Location)
	field("LinkedIn", p.LinkedInURL)
	b.WriteString("\nCriteria:\n")
	for i, c := range criteria {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(c))
	}
	return strings.TrimSpace(b.String())
}

// parseResponse clamps the score to [0, 100] and fills a missing breakdown entry per criterion
// with status unknown.
func parseResponse(text string, criteria []string) (analyzer.Result, error) {
	var parsed responseSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return analyzer.Result{}, fmt.Errorf("gemini: parse structured json: %w", err)
	}
	if math.IsNaN(parsed.Score) {
		parsed.Score = 0
	}
	out := analyzer.Result{
		Score:       math.Max(0, math.Min(100, parsed.Score)),
		Description: strings.TrimSpace(parsed.Description),
	}

	seen := map[string]bool{}
	for _, item := range parsed.Breakdown {
		name := strings.TrimSpace(item.Criterion)
		if name == "" {
			continue
		}
		seen[strings.ToLower(name)] = true
		out.Breakdown = append(out.Breakdown, candidate.BreakdownItem{
			Criterion: name,
			Status:    strings.ToLower(strings.TrimSpace(item.Status)),
			Reason:    strings.TrimSpace(item.Reason),
		})
	}
	for _, c := range criteria {
		c = strings.TrimSpace(c)
		if c == "" || seen[strings.ToLower(c)] {
			continue
		}
		out.Breakdown = append(out.Breakdown, candidate.BreakdownItem{Criterion: c, Status: "unknown"})
	}
	return out, nil
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			return &worker.LimitedTransientError{Err: err, ExtraRetries: 2}
		}
		if apiErr.Code/100 == 5 {
			return &worker.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &worker.TransientError{Err: err}
	}
	return err
}
