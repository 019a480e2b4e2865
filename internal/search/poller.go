package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/outreachkit/prospector/internal/prospect"
)

// JobStatus is the poller's view of a job's lifecycle.
type JobStatus int

const (
	JobPending JobStatus = iota
	JobReady
	JobFailed
)

// Job is the ephemeral record of one poll cycle. It is never persisted and
// is discarded once terminal.
type Job struct {
	ID     string
	Status JobStatus
	Raw    []prospect.RawRecord
}

// StatusClient is the outbound surface the poller needs from the gateway.
type StatusClient interface {
	StartJob(ctx context.Context, text string) (string, error)
	Status(ctx context.Context, jobID string) (StatusResponse, error)
}

// Poller drives the submit -> poll -> ready/failed state machine for one
// search job. Poll attempts are strictly sequential.
type Poller struct {
	Client StatusClient

	// Interval is the delay between poll attempts.
	Interval time.Duration
	// Timeout bounds the whole wait, submission included.
	Timeout time.Duration
	// MaxConsecutiveFailures aborts early when the endpoint looks dead.
	// Zero means 5.
	MaxConsecutiveFailures int
}

func (p Poller) withDefaults() Poller {
	if p.Interval <= 0 {
		p.Interval = 2 * time.Second
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Minute
	}
	if p.MaxConsecutiveFailures <= 0 {
		p.MaxConsecutiveFailures = 5
	}
	return p
}

// SubmitAndAwait submits the description and polls until the job is terminal
// or the budget runs out.
//
// A transient failure of a single poll attempt is not retried in place; it
// counts toward the timeout budget and the loop tries again at the next
// interval. MaxConsecutiveFailures in a row abort with ErrSubmission.
func (p Poller) SubmitAndAwait(ctx context.Context, description string) ([]prospect.RawRecord, error) {
	p = p.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	jobID, err := p.Client.StartJob(ctx, description)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}

	job := Job{ID: jobID, Status: JobPending}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: job %s still pending", ErrTimeout, job.ID)
		case <-ticker.C:
		}

		status, err := p.Client.Status(ctx, job.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: job %s still pending", ErrTimeout, job.ID)
			}
			consecutiveFailures++
			if consecutiveFailures >= p.MaxConsecutiveFailures {
				return nil, fmt.Errorf("%w: %d consecutive poll failures, last: %v", ErrSubmission, consecutiveFailures, err)
			}
			continue
		}
		consecutiveFailures = 0

		switch {
		case status.Failed():
			job.Status = JobFailed
			return nil, fmt.Errorf("%w: job %s reported status %q", ErrJobFailed, job.ID, status.Status)
		case status.Ready():
			records, err := decodeRawRecords(status)
			if err != nil {
				return nil, err
			}
			job.Status = JobReady
			job.Raw = records
			return job.Raw, nil
		}
		// Any other shape is "not yet ready"; keep polling.
	}
}

func decodeRawRecords(status StatusResponse) ([]prospect.RawRecord, error) {
	raw := status.Result.TasksOutput[0].Raw
	var records []prospect.RawRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode raw result for job %s: %w", status.JobID, err)
	}
	return records, nil
}
