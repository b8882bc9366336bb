package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/redact"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/worker"
)

// errorEnvelope is the JSON error body returned by the backend.
type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// HTTPError is a sanitized summary of a non-2xx backend response.
//
// Raw bodies are never kept: they can carry tokens or candidate data.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Code       string
	Message    string
	RequestID  string

	// Snippet is a redacted, truncated hint for bodies that are not an error envelope.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "backend http error"
	}
	parts := []string{
		fmt.Sprintf("backend api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Code) != "" {
		parts = append(parts, "code="+strings.TrimSpace(e.Code))
	}
	if strings.TrimSpace(e.Message) != "" {
		parts = append(parts, "message="+strings.TrimSpace(e.Message))
	}
	if strings.TrimSpace(e.RequestID) != "" {
		parts = append(parts, "request="+strings.TrimSpace(e.RequestID))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// Retryable reports whether the status is worth retrying.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsStatus reports whether err wraps an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == code
}

func newHTTPError(op string, resp *http.Response, body []byte) *HTTPError {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
		h.RequestID = resp.Header.Get(headerRequestID)
		if h.RequestID == "" && resp.Request != nil {
			h.RequestID = resp.Request.Header.Get(headerRequestID)
		}
	}

	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		h.Code = strings.TrimSpace(env.Code)
		h.Message = redact.Secrets(strings.TrimSpace(env.Message))
		if h.Message == "" {
			h.Message = redact.Secrets(strings.TrimSpace(env.Error))
		}
		if h.Code != "" || h.Message != "" {
			return h
		}
	}

	h.Snippet = redact.Truncate(body, 256)
	return h
}

// classify marks retryable HTTP errors for the worker pool. Rate limits get at most two extra
// retries.
func classify(err *HTTPError) error {
	switch {
	case err.StatusCode == http.StatusTooManyRequests:
		return &worker.LimitedTransientError{Err: err, ExtraRetries: 2}
	case err.Retryable():
		return &worker.TransientError{Err: err}
	}
	return err
}

// markNetworkError marks connection-level failures as transient.
func markNetworkError(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &worker.TransientError{Err: wrapped}
	}
	return wrapped
}
