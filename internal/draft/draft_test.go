package draft_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/outreachkit/prospector/internal/draft"
	"github.com/outreachkit/prospector/internal/llm"
	"github.com/outreachkit/prospector/internal/prospect"
)

type drafterFunc func(ctx context.Context, p prospect.Prospect, style llm.Style) (string, error)

func (f drafterFunc) DraftEmail(ctx context.Context, p prospect.Prospect, style llm.Style) (string, error) {
	return f(ctx, p, style)
}

func batch(n int) []prospect.Prospect {
	out := make([]prospect.Prospect, n)
	for i := range out {
		out[i] = prospect.Prospect{
			FirstName:     fmt.Sprintf("P%d", i),
			LinkedInURL:   fmt.Sprintf("https://linkedin.com/in/p%d", i),
			Email:         fmt.Sprintf("p%d@example.com", i),
			EmailMessages: []prospect.EmailMessage{},
		}
	}
	return out
}

func TestGenerateAllPreservesOrderUnderConcurrency(t *testing.T) {
	t.Parallel()

	prospects := batch(12)

	// Later indexes finish first to prove output order is index-aligned.
	fn := drafterFunc(func(_ context.Context, p prospect.Prospect, _ llm.Style) (string, error) {
		var i int
		_, _ = fmt.Sscanf(p.FirstName, "P%d", &i)
		time.Sleep(time.Duration(len(prospects)-i) * time.Millisecond)
		return "hello " + p.FirstName, nil
	})

	report, err := draft.GenerateAll(context.Background(), prospects, fn, llm.Style{}, draft.Options{
		Workers: 8,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Prospects) != len(prospects) {
		t.Fatalf("expected %d prospects, got %d", len(prospects), len(report.Prospects))
	}
	if len(report.Failed) != 0 {
		t.Fatalf("unexpected failures: %#v", report.Failed)
	}
	for i, p := range report.Prospects {
		if p.LinkedInURL != prospects[i].LinkedInURL {
			t.Fatalf("index %d: output not aligned with input: got %q", i, p.LinkedInURL)
		}
		if len(p.EmailMessages) != 1 {
			t.Fatalf("index %d: expected 1 message, got %d", i, len(p.EmailMessages))
		}
		if p.EmailMessages[0].From != "me" {
			t.Fatalf("index %d: first message must be from me, got %q", i, p.EmailMessages[0].From)
		}
		if p.EmailMessages[0].Text != "hello "+p.FirstName {
			t.Fatalf("index %d: wrong draft %q", i, p.EmailMessages[0].Text)
		}
	}
}

func TestGenerateAllPartialFailureContinuesBatch(t *testing.T) {
	t.Parallel()

	prospects := batch(2)
	fn := drafterFunc(func(_ context.Context, p prospect.Prospect, _ llm.Style) (string, error) {
		if p.FirstName == "P0" {
			return "", errors.New("backend rejected prompt")
		}
		return "draft for " + p.FirstName, nil
	})

	report, err := draft.GenerateAll(context.Background(), prospects, fn, llm.Style{}, draft.Options{
		Workers:       2,
		FailurePolicy: draft.FailurePolicyPartialOutput,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Failed) != 1 || report.Failed[0].Index != 0 {
		t.Fatalf("expected one failure at index 0, got %#v", report.Failed)
	}
	if report.Failed[0].Prospect.LinkedInURL != prospects[0].LinkedInURL {
		t.Fatalf("failure must name the failed prospect, got %q", report.Failed[0].Prospect.LinkedInURL)
	}

	drafted := report.Drafted()
	if len(drafted) != 1 || drafted[0].FirstName != "P1" {
		t.Fatalf("expected exactly P1 drafted, got %#v", drafted)
	}
	if len(report.Prospects[0].EmailMessages) != 0 {
		t.Fatalf("failed prospect must keep empty messages, got %#v", report.Prospects[0].EmailMessages)
	}
}

func TestGenerateAllFailFastAbortsBatch(t *testing.T) {
	t.Parallel()

	prospects := batch(2)
	fn := drafterFunc(func(_ context.Context, p prospect.Prospect, _ llm.Style) (string, error) {
		if p.FirstName == "P0" {
			return "", errors.New("backend down")
		}
		return "draft", nil
	})

	report, err := draft.GenerateAll(context.Background(), prospects, fn, llm.Style{}, draft.Options{
		Workers:       1,
		FailurePolicy: draft.FailurePolicyFailFast,
	})
	if err == nil {
		t.Fatal("expected an aggregate error")
	}
	var batchErr *draft.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %T: %v", err, err)
	}
	if batchErr.Failure.Index != 0 {
		t.Fatalf("expected failure at index 0, got %d", batchErr.Failure.Index)
	}
	if len(report.Prospects) != 0 {
		t.Fatalf("fail-fast must return zero drafts, got %d", len(report.Prospects))
	}
}

func TestGenerateAllRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	fn := drafterFunc(func(_ context.Context, _ prospect.Prospect, _ llm.Style) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= 2 {
			return "", &llm.TransientError{Err: errors.New("rate limited")}
		}
		return "done", nil
	})

	report, err := draft.GenerateAll(context.Background(), batch(1), fn, llm.Style{}, draft.Options{
		Workers:           1,
		MaxRetries:        3,
		BackoffInitial:    time.Millisecond,
		BackoffMax:        2 * time.Millisecond,
		BackoffJitterFrac: -1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Failed) != 0 {
		t.Fatalf("unexpected failures: %#v", report.Failed)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestGenerateAllDoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	fn := drafterFunc(func(_ context.Context, _ prospect.Prospect, _ llm.Style) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", errors.New("content policy")
	})

	report, err := draft.GenerateAll(context.Background(), batch(1), fn, llm.Style{}, draft.Options{
		Workers:    1,
		MaxRetries: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Failed) != 1 {
		t.Fatalf("expected one failure, got %#v", report.Failed)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestGenerateAllAppliesStyleDefaults(t *testing.T) {
	t.Parallel()

	var got llm.Style
	var mu sync.Mutex
	fn := drafterFunc(func(_ context.Context, _ prospect.Prospect, style llm.Style) (string, error) {
		mu.Lock()
		got = style
		mu.Unlock()
		return "ok", nil
	})

	_, err := draft.GenerateAll(context.Background(), batch(1), fn, llm.Style{Tone: "formal"}, draft.Options{Workers: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Tone != "formal" {
		t.Fatalf("explicit tone must survive, got %q", got.Tone)
	}
	for name, v := range map[string]string{"length": got.Length, "style": got.Style, "context": got.Context} {
		if v != llm.StyleAuto {
			t.Fatalf("%s must default to %q, got %q", name, llm.StyleAuto, v)
		}
	}
}

func TestDraftPromptEmbedsProspectAndStyle(t *testing.T) {
	t.Parallel()

	p := prospect.Prospect{FirstName: "Ada", OrganizationName: "Ion", LinkedInURL: "https://linkedin.com/in/ada"}
	prompt := llm.DraftPrompt(p, llm.Style{Tone: "casual", Context: "conference follow-up"})

	for _, want := range []string{`"firstName":"Ada"`, "Email Tone: casual", "Email Context: conference follow-up", "Email Length: auto"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
