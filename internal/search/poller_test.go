package search_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/outreachkit/prospector/internal/mocksearch"
	"github.com/outreachkit/prospector/internal/prospect"
	"github.com/outreachkit/prospector/internal/search"
)

func newPoller(t *testing.T, handler http.Handler) search.Poller {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := search.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return search.Poller{
		Client:   client,
		Interval: 5 * time.Millisecond,
		Timeout:  2 * time.Second,
	}
}

func TestSubmitAndAwaitPendingThenReady(t *testing.T) {
	t.Parallel()

	mock := mocksearch.New()
	mock.PendingPolls = 2
	mock.Records = []prospect.RawRecord{{
		FirstName:        "Ada",
		LastName:         "Lin",
		OrganizationName: "Ion",
		LinkedInURL:      "https://linkedin.com/in/ada",
		Email:            prospect.LockedEmailSentinel,
	}}

	poller := newPoller(t, mock.Handler())

	records, err := poller.SubmitAndAwait(context.Background(), "AI startups in SF")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].FirstName != "Ada" {
		t.Fatalf("unexpected records: %#v", records)
	}

	var statusCalls int
	for _, c := range mock.Calls() {
		if c.Path == "/status" {
			statusCalls++
		}
	}
	if statusCalls != 3 {
		t.Fatalf("expected 3 status polls (2 pending + 1 ready), got %d", statusCalls)
	}
}

func TestSubmitAndAwaitJobFailed(t *testing.T) {
	t.Parallel()

	mock := mocksearch.New()
	mock.FailJob = true

	poller := newPoller(t, mock.Handler())

	_, err := poller.SubmitAndAwait(context.Background(), "anyone")
	if !errors.Is(err, search.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
}

func TestSubmitAndAwaitTimesOutWhilePending(t *testing.T) {
	t.Parallel()

	mock := mocksearch.New()
	mock.PendingPolls = 1 << 30 // never ready

	poller := newPoller(t, mock.Handler())
	poller.Timeout = 100 * time.Millisecond

	records, err := poller.SubmitAndAwait(context.Background(), "anyone")
	if !errors.Is(err, search.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if records != nil {
		t.Fatalf("no partial result may be returned on timeout, got %#v", records)
	}
}

func TestSubmitAndAwaitMissingJobID(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/start_job", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	poller := newPoller(t, mux)

	_, err := poller.SubmitAndAwait(context.Background(), "anyone")
	if !errors.Is(err, search.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
}

func TestSubmitAndAwaitAbortsAfterConsecutivePollFailures(t *testing.T) {
	t.Parallel()

	var statusCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/start_job", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job_id":"j1"}`))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		statusCalls++
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	poller := newPoller(t, mux)
	poller.MaxConsecutiveFailures = 3

	_, err := poller.SubmitAndAwait(context.Background(), "anyone")
	if !errors.Is(err, search.ErrSubmission) {
		t.Fatalf("expected ErrSubmission after repeated poll failures, got %v", err)
	}
	if statusCalls != 3 {
		t.Fatalf("expected exactly 3 status attempts, got %d", statusCalls)
	}
}

func TestStatusResponseShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		body   string
		ready  bool
		failed bool
	}{
		{"running", `{"job_id":"j","status":"running"}`, false, false},
		{"failed", `{"job_id":"j","status":"failed"}`, false, true},
		{"ready", `{"job_id":"j","status":"completed","result":{"tasks_output":[{"raw":"[]"}]}}`, true, false},
		{"empty result", `{"job_id":"j","status":"completed","result":{"tasks_output":[]}}`, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			})
			srv := httptest.NewServer(mux)
			t.Cleanup(srv.Close)

			client, err := search.NewClient(srv.URL)
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			status, err := client.Status(context.Background(), "j")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status.Ready() != tc.ready {
				t.Fatalf("Ready() = %v, want %v", status.Ready(), tc.ready)
			}
			if status.Failed() != tc.failed {
				t.Fatalf("Failed() = %v, want %v", status.Failed(), tc.failed)
			}
		})
	}
}
