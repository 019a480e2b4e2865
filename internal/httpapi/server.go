// Package httpapi exposes the pipeline over a small JSON HTTP surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/outreachkit/prospector/internal/llm"
	"github.com/outreachkit/prospector/internal/pipeline"
	"github.com/outreachkit/prospector/internal/prospect"
	"github.com/outreachkit/prospector/internal/search"
)

// Server routes requests to a pipeline coordinator.
type Server struct {
	Coordinator *pipeline.Coordinator

	// Logger defaults to the standard logger.
	Logger *log.Logger
}

// Handler returns the API routing table wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prospects", s.handleSearch)
	mux.HandleFunc("POST /api/emails", s.handleGenerate)
	mux.HandleFunc("POST /api/campaigns", s.handleCreateCampaign)
	mux.HandleFunc("GET /api/campaigns", s.handleListCampaigns)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s.logRequests(mux)
}

type searchResponse struct {
	Prospects     []prospect.Prospect `json:"prospects"`
	CampaignTitle string              `json:"campaignTitle"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	description := strings.TrimSpace(r.URL.Query().Get("description"))
	if description == "" {
		writeError(w, http.StatusBadRequest, "description query parameter is required")
		return
	}

	result, err := s.Coordinator.SearchProspects(r.Context(), description)
	if err != nil {
		writeError(w, searchStatusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Prospects:     result.Prospects,
		CampaignTitle: result.CampaignTitle,
	})
}

type generateRequest struct {
	Prospects    []prospect.Prospect `json:"prospects"`
	EmailTone    string              `json:"emailTone"`
	EmailLength  string              `json:"emailLength"`
	EmailStyle   string              `json:"emailStyle"`
	EmailContext string              `json:"emailContext"`
}

type generateFailure struct {
	LinkedInURL string `json:"linkedinUrl"`
	Error       string `json:"error"`
}

type generateResponse struct {
	Prospects []prospect.Prospect `json:"prospects"`
	Failed    []generateFailure   `json:"failed"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Prospects) == 0 {
		writeError(w, http.StatusBadRequest, "prospects are required")
		return
	}

	style := llm.Style{
		Tone:    req.EmailTone,
		Length:  req.EmailLength,
		Style:   req.EmailStyle,
		Context: req.EmailContext,
	}
	report, err := s.Coordinator.GenerateEmails(r.Context(), req.Prospects, style)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	failed := make([]generateFailure, 0, len(report.Failed))
	for _, f := range report.Failed {
		failed = append(failed, generateFailure{
			LinkedInURL: f.Prospect.LinkedInURL,
			Error:       f.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, generateResponse{
		Prospects: report.Prospects,
		Failed:    failed,
	})
}

type createCampaignRequest struct {
	Title     string              `json:"title"`
	Prospects []prospect.Prospect `json:"prospects"`
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	key, err := s.Coordinator.CreateCampaign(r.Context(), req.Title, req.Prospects)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.Coordinator.ListCampaigns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]prospect.Campaign{"campaigns": campaigns})
}

func searchStatusCode(err error) int {
	var malformed *prospect.MalformedRecordError
	switch {
	case errors.Is(err, search.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, search.ErrJobFailed), errors.Is(err, search.ErrSubmission):
		return http.StatusBadGateway
	case errors.As(err, &malformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logf("method=%s path=%s status=%d elapsed=%s",
			r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
