package candidate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Header returns the stable CSV header written by WriteCSV.
func Header() []string {
	return []string{
		"id",
		"provider_uid",
		"linkedin_url",
		"linkedin_url_status",
		"email",
		"full_name",
		"first_name",
		"last_name",
		"title",
		"company",
		"location",
		"analysis_score",
		"analysis_description",
		"analysis_breakdown",
	}
}

// WriteCSV writes records with the stable Header() ordering.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range records {
		score, desc, breakdown := "", "", ""
		if r.Analysis != nil {
			score = strconv.FormatFloat(r.Analysis.Score, 'f', -1, 64)
			desc = r.Analysis.Description
			if len(r.Analysis.Breakdown) > 0 {
				b, err := json.Marshal(r.Analysis.Breakdown)
				if err != nil {
					return fmt.Errorf("encode breakdown for %q: %w", r.ID, err)
				}
				breakdown = string(b)
			}
		}
		if err := cw.Write([]string{
			r.ID,
			r.ProviderUID,
			r.LinkedInURL,
			string(r.LinkedInURLStatus),
			r.Email,
			r.FullName,
			r.FirstName,
			r.LastName,
			r.Title,
			r.Company,
			r.Location,
			score,
			desc,
			breakdown,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads records from a CSV.
//
// Column names are matched case-insensitively and extra columns are ignored. At least one identity
// column (id, provider_uid, linkedin_url) must be present. Rows without an id get "row-<n>" so every
// record has a stable local id.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	_, hasID := index["id"]
	_, hasUID := index["provider_uid"]
	_, hasURL := index["linkedin_url"]
	if !hasID && !hasUID && !hasURL {
		return nil, fmt.Errorf("missing identity column: need one of id, provider_uid, linkedin_url")
	}

	var out []Record
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		row := Record{
			ID:                get("id"),
			ProviderUID:       get("provider_uid"),
			LinkedInURL:       get("linkedin_url"),
			LinkedInURLStatus: LinkedInURLStatus(get("linkedin_url_status")),
			Email:             get("email"),
			FullName:          get("full_name"),
			FirstName:         get("first_name"),
			LastName:          get("last_name"),
			Title:             get("title"),
			Company:           get("company"),
			Location:          get("location"),
		}
		if row.ID == "" {
			row.ID = "row-" + strconv.Itoa(line)
		}
		if row.ProviderUID != "" {
			row.Provider = &Provider{UID: row.ProviderUID}
		}

		analysis, err := readAnalysis(get("analysis_score"), get("analysis_description"), get("analysis_breakdown"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		row.Analysis = analysis
		out = append(out, row)
	}
}

func readAnalysis(score, desc, breakdown string) (*Analysis, error) {
	if score == "" && desc == "" && breakdown == "" {
		return nil, nil
	}
	a := &Analysis{Description: desc}
	if score != "" {
		v, err := strconv.ParseFloat(score, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid analysis_score %q: %w", score, err)
		}
		a.Score = v
	}
	if breakdown != "" {
		if err := json.Unmarshal([]byte(breakdown), &a.Breakdown); err != nil {
			return nil, fmt.Errorf("invalid analysis_breakdown: %w", err)
		}
	}
	return a, nil
}
