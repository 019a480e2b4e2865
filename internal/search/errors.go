package search

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrSubmission marks a job that could not be created or kept alive: the
	// submit response lacked a job id, or polling hit the consecutive-failure cap.
	ErrSubmission = errors.New("search: job submission failed")

	// ErrTimeout marks a poll budget exhausted without a terminal job state.
	ErrTimeout = errors.New("search: poll timeout")

	// ErrJobFailed marks a job the service explicitly reported as failed.
	ErrJobFailed = errors.New("search: job failed")
)

// APIError is a sanitized summary of a non-2xx search-service response.
//
// Raw bodies can carry prospect PII, so only a truncated snippet is kept.
type APIError struct {
	Op         string
	StatusCode int
	Status     string
	Snippet    string
}

func (e *APIError) Error() string {
	if e == nil {
		return "search api error"
	}
	msg := fmt.Sprintf("search api error: op=%s status=%s", e.Op, e.Status)
	if e.Snippet != "" {
		msg += " body=" + e.Snippet
	}
	return msg
}

func newAPIError(op string, resp *http.Response, body []byte) error {
	e := &APIError{Op: op}
	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Status = resp.Status
	}
	e.Snippet = truncateSnippet(body)
	return e
}

func truncateSnippet(body []byte) string {
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := strings.ReplaceAll(string(b), "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
