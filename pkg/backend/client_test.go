package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/backend"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/stream"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/worker"
)

func newClient(t *testing.T, srv *httptest.Server) *backend.Client {
	t.Helper()
	c, err := backend.NewClient(srv.URL+"/api", backend.Options{Token: "tok-123", UserAgent: "sourcer-test/1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	if _, err := backend.NewClient("", backend.Options{}); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
	if _, err := backend.NewClient("api.example.com", backend.Options{}); err != nil {
		t.Fatalf("scheme-less host should default to https: %v", err)
	}
	if _, err := backend.NewClient("https://api.example.com", backend.Options{DefaultCAPath: "/does/not/exist.pem"}); err == nil {
		t.Fatalf("expected error for missing CA bundle")
	}
}

func TestStreamEmails_SendsContractAndDeliversEvents(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotReq  backend.EmailRequest
		headers http.Header
		path    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		path = r.URL.Path
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"result\",\"profileId\":\"p1\",\"status\":\"success\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"complete\",\"totalProcessed\":1}\n\n")
	}))
	defer srv.Close()

	c := newClient(t, srv)
	var events []stream.Type
	completed := make(chan struct{})
	s, err := c.StreamEmails(context.Background(), backend.EmailRequest{
		ProfileIDs:  []string{"p1"},
		ProfileData: []backend.EmailProfile{{FirstName: "Anna", LastName: "Svensson", DomainOrCompany: "acme.se"}},
	}, stream.Handlers{
		OnData:     func(ev stream.Event) { events = append(events, ev.Type) },
		OnComplete: func() { close(completed) },
		OnError:    func(err error) { t.Errorf("unexpected error: %v", err) },
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	select {
	case <-completed:
	case <-time.After(5 * time.Second):
		t.Fatalf("stream did not complete")
	}
	<-s.Done()

	mu.Lock()
	defer mu.Unlock()
	if path != "/api/enrich/emails/stream" {
		t.Fatalf("path=%q", path)
	}
	if headers.Get("Authorization") != "Bearer tok-123" || headers.Get("Accept") != "text/event-stream" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if headers.Get("X-Request-Id") == "" || headers.Get("User-Agent") != "sourcer-test/1" {
		t.Fatalf("missing request id or user agent: %v", headers)
	}
	if len(gotReq.ProfileIDs) != 1 || gotReq.ProfileData[0].DomainOrCompany != "acme.se" {
		t.Fatalf("unexpected body: %#v", gotReq)
	}
	if len(events) != 2 || events[1] != stream.TypeComplete {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestOpenStream_HTTPErrorGoesToOnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"message":"Insufficient credits","code":"NO_CREDITS"}`)
	}))
	defer srv.Close()

	errCh := make(chan error, 1)
	s, err := newClient(t, srv).StreamLinkedInURLs(context.Background(), backend.LinkedInRequest{ProfileIDs: []string{"p1"}}, stream.Handlers{
		OnError:    func(err error) { errCh <- err },
		OnComplete: func() { t.Errorf("unexpected completion") },
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	select {
	case err := <-errCh:
		var he *backend.HTTPError
		if !errors.As(err, &he) {
			t.Fatalf("expected HTTPError, got %T %v", err, err)
		}
		if he.StatusCode != http.StatusPaymentRequired || he.Code != "NO_CREDITS" || he.Message != "Insufficient credits" {
			t.Fatalf("unexpected error: %#v", he)
		}
		if he.RequestID == "" {
			t.Fatalf("expected request id on error")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no error reported")
	}
}

func TestSaveProfile(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		saved = map[string]candidate.Record{}
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.URL.EscapedPath())
		if r.Method != http.MethodPut {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		var rec candidate.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		saved[rec.ID] = rec
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newClient(t, srv)
	if err := c.SaveProfile(context.Background(), candidate.Record{ID: "row 1/a", Email: "a@x.com"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := c.SaveProfile(context.Background(), candidate.Record{}); err == nil {
		t.Fatalf("expected error for record without id")
	}

	mu.Lock()
	defer mu.Unlock()
	if saved["row 1/a"].Email != "a@x.com" {
		t.Fatalf("unexpected saved records: %#v", saved)
	}
	if len(paths) != 1 || paths[0] != "/api/profiles/row%201%2Fa" {
		t.Fatalf("unexpected paths: %v", paths)
	}
}

func TestSaveProfile_ClassifiesFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		body          string
		wantTransient bool
		wantLimited   bool
	}{
		{name: "server_error", status: http.StatusBadGateway, body: "upstream down", wantTransient: true},
		{name: "rate_limited", status: http.StatusTooManyRequests, body: `{"message":"slow down"}`, wantTransient: true, wantLimited: true},
		{name: "bad_request", status: http.StatusBadRequest, body: `{"error":"invalid email"}`},
		{name: "leaky_body", status: http.StatusUnauthorized, body: "bad token Bearer abc.def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := newClient(t, srv).SaveProfile(context.Background(), candidate.Record{ID: "r1"})
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := worker.IsTransient(err); got != tt.wantTransient {
				t.Fatalf("IsTransient=%v want %v (%v)", got, tt.wantTransient, err)
			}
			var lte *worker.LimitedTransientError
			if got := errors.As(err, &lte); got != tt.wantLimited {
				t.Fatalf("limited=%v want %v", got, tt.wantLimited)
			}
			if !backend.IsStatus(err, tt.status) {
				t.Fatalf("expected status %d in %v", tt.status, err)
			}
			if strings.Contains(err.Error(), "abc.def") {
				t.Fatalf("token leaked: %v", err)
			}
		})
	}
}

func TestListProfiles(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/profiles" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"profiles":[{"id":"r1","email":"a@x.com"},{"id":"r2"}]}`)
	}))
	defer srv.Close()

	got, err := newClient(t, srv).ListProfiles(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Email != "a@x.com" {
		t.Fatalf("unexpected profiles: %#v", got)
	}
}

func TestSaveProfile_ConnectionRefusedIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	c := newClient(t, srv)
	srv.Close()

	err := c.SaveProfile(context.Background(), candidate.Record{ID: "r1"})
	if err == nil || !worker.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
