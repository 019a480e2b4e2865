// Package mocksearch implements a minimal in-process stand-in for the
// prospect-search service, for tests and local development.
package mocksearch

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/outreachkit/prospector/internal/prospect"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
	JobID  string
}

// Server implements the start_job/status surface. Each job reports "running"
// for PendingPolls status checks, then turns terminal.
type Server struct {
	// PendingPolls is how many status calls return a non-ready shape before
	// the job resolves.
	PendingPolls int
	// Records is the ready payload, JSON-encoded into tasks_output[0].raw.
	Records []prospect.RawRecord
	// FailJob makes every job resolve to the failed status instead.
	FailJob bool

	mu    sync.Mutex
	calls []Call
	polls map[string]int
}

func New() *Server {
	return &Server{polls: make(map[string]int)}
}

// Calls returns a snapshot of requests made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns an http.Handler serving the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/start_job", s.handleStartJob)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

func (s *Server) recordCall(r *http.Request, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, JobID: jobID})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "text is required"})
		return
	}

	jobID := uuid.New().String()
	s.mu.Lock()
	if s.polls == nil {
		s.polls = make(map[string]int)
	}
	s.polls[jobID] = 0
	s.mu.Unlock()
	s.recordCall(r, jobID)

	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobID := strings.TrimSpace(r.URL.Query().Get("job_id"))
	s.recordCall(r, jobID)

	s.mu.Lock()
	seen, ok := s.polls[jobID]
	if ok {
		s.polls[jobID] = seen + 1
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown job_id"})
		return
	}

	if seen < s.PendingPolls {
		writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "status": "running"})
		return
	}

	if s.FailJob {
		writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "status": "failed"})
		return
	}

	raw, err := json.Marshal(s.Records)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": jobID,
		"status": "completed",
		"result": map[string]any{
			"tasks_output": []map[string]any{{"raw": string(raw)}},
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
