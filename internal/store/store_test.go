package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveUpsertsAndLists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTest(t)

	first := candidate.Record{ID: "b", LinkedInURL: "https://linkedin.com/in/b"}
	if err := s.SaveProfile(ctx, first); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if err := s.SaveProfile(ctx, candidate.Record{ID: "a", Email: "a@x.com"}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	first.Email = candidate.NoEmailsFound
	first.Analysis = &candidate.Analysis{Score: 77, Breakdown: []candidate.BreakdownItem{{Criterion: "Go", Status: "match"}}}
	if err := s.SaveProfile(ctx, first); err != nil {
		t.Fatalf("SaveProfile update: %v", err)
	}

	got, err := s.GetProfile(ctx, "b")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Email != candidate.NoEmailsFound || got.Analysis == nil || got.Analysis.Score != 77 {
		t.Fatalf("got=%+v", got)
	}

	all, err := s.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("list=%+v", all)
	}
}

func TestStore_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTest(t)

	if _, err := s.GetProfile(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	if err := s.SaveProfile(ctx, candidate.Record{ID: "  "}); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if _, err := Open(ctx, ""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestStore_MemoryDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.SaveProfile(ctx, candidate.Record{ID: "m"}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if _, err := s.GetProfile(ctx, "m"); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
}
