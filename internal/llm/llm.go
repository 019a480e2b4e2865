// Package llm defines the outbound text-generation surface: drafting one
// outreach email per prospect and summarizing an audience description into a
// campaign title.
package llm

import (
	"context"
	"strings"

	"github.com/outreachkit/prospector/internal/prospect"
)

// StyleAuto is the sentinel for "let the model decide".
const StyleAuto = "auto"

// Style is the user-selected email style configuration.
type Style struct {
	Tone    string `json:"tone"`
	Length  string `json:"length"`
	Style   string `json:"style"`
	Context string `json:"context"`
}

// WithDefaults fills blank fields with the auto sentinel.
func (s Style) WithDefaults() Style {
	if strings.TrimSpace(s.Tone) == "" {
		s.Tone = StyleAuto
	}
	if strings.TrimSpace(s.Length) == "" {
		s.Length = StyleAuto
	}
	if strings.TrimSpace(s.Style) == "" {
		s.Style = StyleAuto
	}
	if strings.TrimSpace(s.Context) == "" {
		s.Context = StyleAuto
	}
	return s
}

// Drafter produces one personalized email body for a prospect.
type Drafter interface {
	DraftEmail(ctx context.Context, p prospect.Prospect, style Style) (string, error)
}

// Summarizer produces a short campaign title from an audience description.
type Summarizer interface {
	SummarizeTitle(ctx context.Context, description string) (string, error)
}

// TransientError marks a backend failure as retryable. The draft worker pool
// retries transient failures with backoff rather than failing the prospect.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
