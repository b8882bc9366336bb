package candidate_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
)

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := candidate.WriteCSV(&buf, []candidate.Record{{
		ID:    "r1",
		Email: "a@x.com",
		Analysis: &candidate.Analysis{
			Score:     82.5,
			Breakdown: []candidate.BreakdownItem{{Criterion: "Go", Status: "match"}},
		},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d records", len(records))
	}
	want := candidate.Header()
	for i := range want {
		if records[0][i] != want[i] {
			t.Fatalf("header[%d]: want %q got %q", i, want[i], records[0][i])
		}
	}
	if records[1][0] != "r1" || records[1][4] != "a@x.com" || records[1][11] != "82.5" {
		t.Fatalf("unexpected row: %#v", records[1])
	}
	if !strings.Contains(records[1][13], `"criterion":"Go"`) {
		t.Fatalf("breakdown not encoded: %q", records[1][13])
	}
}

func TestReadCSV(t *testing.T) {
	in := strings.Join([]string{
		"Provider_UID,LinkedIn_URL,First_Name,Company,Unrelated",
		"0123456789abcdef0123456789abcdef,,Ann,Acme,x",
		",https://linkedin.com/in/jane,Jane,,y",
		"",
	}, "\n")

	rows, err := candidate.ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != "row-1" || rows[1].ID != "row-2" {
		t.Fatalf("expected generated ids, got %q %q", rows[0].ID, rows[1].ID)
	}
	if rows[0].NestedProviderUID() != "0123456789abcdef0123456789abcdef" || rows[0].Company != "Acme" {
		t.Fatalf("unexpected row[0]: %#v", rows[0])
	}
	if rows[1].LinkedInURL != "https://linkedin.com/in/jane" || rows[1].Provider != nil {
		t.Fatalf("unexpected row[1]: %#v", rows[1])
	}
}

func TestReadCSV_RequiresIdentityColumn(t *testing.T) {
	_, err := candidate.ReadCSV(strings.NewReader("first_name,company\nAnn,Acme\n"))
	if err == nil || !strings.Contains(err.Error(), "missing identity column") {
		t.Fatalf("expected identity column error, got %v", err)
	}
}

func TestReadCSV_ReadsBackWrittenAnalysis(t *testing.T) {
	var buf bytes.Buffer
	in := []candidate.Record{{
		ID:       "r9",
		FullName: "Ann Lee",
		Analysis: &candidate.Analysis{Score: 70, Description: "solid", Breakdown: []candidate.BreakdownItem{{Criterion: "Go"}}},
	}}
	if err := candidate.WriteCSV(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := candidate.ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 1 || out[0].Analysis == nil || out[0].Analysis.Score != 70 || out[0].Analysis.Breakdown[0].Criterion != "Go" {
		t.Fatalf("unexpected records: %#v", out)
	}
}

func TestRecordClone_DoesNotShareAnalysis(t *testing.T) {
	r := candidate.Record{ID: "a", Analysis: &candidate.Analysis{Score: 1, Breakdown: []candidate.BreakdownItem{{Criterion: "x"}}}}
	c := r.Clone()
	c.Analysis.Score = 2
	c.Analysis.Breakdown[0].Criterion = "y"
	if r.Analysis.Score != 1 || r.Analysis.Breakdown[0].Criterion != "x" {
		t.Fatalf("clone shares memory with original: %#v", r.Analysis)
	}
}
