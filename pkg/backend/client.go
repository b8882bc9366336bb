// Package backend is a thin client for the enrichment backend: streaming lookups and profile
// persistence.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/stream"
)

const headerRequestID = "X-Request-Id"

// Options configures a Client.
type Options struct {
	Token string
	// DefaultCAPath is an optional PEM bundle used as the TLS trust store.
	DefaultCAPath string
	UserAgent     string
	// RequestTimeout bounds non-streaming calls. Streams are bounded only by their context.
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Client talks to the backend API.
type Client struct {
	baseURL   *url.URL
	token     string
	userAgent string
	http      *http.Client
	streaming *http.Client
	log       *zap.Logger
}

// NewClient constructs a client for the API base URL, e.g. "https://api.example.com/api".
func NewClient(baseURL string, opts Options) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	tr, err := newTransport(opts.DefaultCAPath)
	if err != nil {
		return nil, err
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   base,
		token:     strings.TrimSpace(opts.Token),
		userAgent: strings.TrimSpace(opts.UserAgent),
		http:      &http.Client{Transport: tr, Timeout: timeout},
		streaming: &http.Client{Transport: tr},
		log:       logger,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend base URL must include a host (got %q)", raw)
	}
	// A trailing slash makes ResolveReference treat the base path as a directory.
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newTransport(defaultCAPath string) (*http.Transport, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if p := strings.TrimSpace(defaultCAPath); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return nil, fmt.Errorf("parse CA bundle PEM: no certs found")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return tr, nil
}

// OpenStream POSTs payload to path and streams the response into h. The returned error covers
// request construction only; transport failures go to h.OnError.
func (c *Client) OpenStream(ctx context.Context, path string, payload any, h stream.Handlers) (*stream.Stream, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path).String(), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	c.setHeaders(req, "text/event-stream")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerRequestID, requestID)

	op := strings.TrimSuffix(path, "/stream")
	logger := c.log.With(zap.String("stream", op), zap.String("request_id", requestID))
	logger.Debug("opening stream", zap.Int("bytes", len(b)))

	return stream.Start(ctx, c.streaming, req, h, stream.Options{
		Logger: logger,
		ResponseError: func(resp *http.Response, body []byte) error {
			return newHTTPError(op, resp, body)
		},
	}), nil
}

// StreamEmails starts an email lookup.
func (c *Client) StreamEmails(ctx context.Context, req EmailRequest, h stream.Handlers) (*stream.Stream, error) {
	return c.OpenStream(ctx, PathEmailStream, req, h)
}

// StreamLinkedInURLs starts a LinkedIn URL lookup.
func (c *Client) StreamLinkedInURLs(ctx context.Context, req LinkedInRequest, h stream.Handlers) (*stream.Stream, error) {
	return c.OpenStream(ctx, PathLinkedInStream, req, h)
}

// StreamAnalysis starts a deep analysis.
func (c *Client) StreamAnalysis(ctx context.Context, req AnalysisRequest, h stream.Handlers) (*stream.Stream, error) {
	return c.OpenStream(ctx, PathAnalysisStream, req, h)
}

// SaveProfile writes rec back to the backend. Retryable failures are returned as
// *worker.TransientError or *worker.LimitedTransientError.
func (c *Client) SaveProfile(ctx context.Context, rec candidate.Record) error {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return errors.New("save profile: record id is required")
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", id, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.resolve(PathProfiles, id).String(), bytes.NewReader(b))
	if err != nil {
		return err
	}
	c.setHeaders(req, "application/json")
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, "saveProfile")
	return err
}

// ListProfiles returns every stored profile.
func (c *Client) ListProfiles(ctx context.Context) ([]candidate.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(PathProfiles).String(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, "application/json")

	b, err := c.do(req, "listProfiles")
	if err != nil {
		return nil, err
	}
	var out profilesResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse list profiles response: %w", err)
	}
	return out.Profiles, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if req.Context().Err() == nil {
			return nil, markNetworkError(op, err)
		}
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, markNetworkError(op, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, classify(newHTTPError(op, resp, b))
	}
	return b, nil
}

func (c *Client) setHeaders(req *http.Request, accept string) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", accept)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// resolve joins relPath and the escaped segments onto the base URL.
func (c *Client) resolve(relPath string, segments ...string) *url.URL {
	p := strings.Trim(relPath, "/")
	raw := p
	for _, s := range segments {
		p += "/" + s
		raw += "/" + url.PathEscape(s)
	}
	return c.baseURL.ResolveReference(&url.URL{Path: p, RawPath: raw})
}
