package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a typed HTTP client for the prospect-search service's two
// endpoints: POST /start_job and GET /status.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient constructs a client for the search-service base URL. A bare
// hostname is accepted and defaults to https.
func NewClient(searchURL string) (*Client, error) {
	raw := strings.TrimSpace(searchURL)
	if raw == "" {
		return nil, fmt.Errorf("search service URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse search service URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("search service URL must include a host (got %q)", searchURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	return &Client{
		baseURL: u,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type startJobRequest struct {
	Text string `json:"text"`
}

type startJobResponse struct {
	JobID string `json:"job_id"`
}

// TaskOutput is one element of a ready status payload. Raw holds an
// undecoded JSON array of raw prospect records.
type TaskOutput struct {
	Raw string `json:"raw"`
}

// StatusResponse is the job-status shape. Anything that does not match the
// ready shape is treated as "not yet ready" unless the status is a terminal
// failure.
type StatusResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Result *struct {
		TasksOutput []TaskOutput `json:"tasks_output"`
	} `json:"result"`
}

// Ready reports whether the response carries a usable result payload.
func (s StatusResponse) Ready() bool {
	return s.Result != nil && len(s.Result.TasksOutput) > 0 && strings.TrimSpace(s.Result.TasksOutput[0].Raw) != ""
}

// Failed reports whether the service explicitly reported job failure.
func (s StatusResponse) Failed() bool {
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case "failed", "error":
		return true
	}
	return false
}

// StartJob submits a free-text audience description and returns the job id.
func (c *Client) StartJob(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(startJobRequest{Text: text})
	if err != nil {
		return "", err
	}

	u := c.resolve("/start_job")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", newAPIError("startJob", resp, rb)
	}

	var out startJobResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return "", fmt.Errorf("parse start_job response: %w", err)
	}
	if strings.TrimSpace(out.JobID) == "" {
		return "", fmt.Errorf("%w: start_job response missing job_id", ErrSubmission)
	}
	return out.JobID, nil
}

// Status queries the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (StatusResponse, error) {
	if strings.TrimSpace(jobID) == "" {
		return StatusResponse{}, fmt.Errorf("job id is required")
	}

	u := c.resolve("/status")
	q := url.Values{}
	q.Set("job_id", jobID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return StatusResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return StatusResponse{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return StatusResponse{}, err
	}
	if resp.StatusCode/100 != 2 {
		return StatusResponse{}, newAPIError("status", resp, rb)
	}

	var out StatusResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return StatusResponse{}, fmt.Errorf("parse status response: %w", err)
	}
	return out, nil
}

func (c *Client) resolve(p string) *url.URL {
	rel := &url.URL{Path: p}
	return c.baseURL.ResolveReference(rel)
}
