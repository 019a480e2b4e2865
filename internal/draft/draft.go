// Package draft fans out one email-generation request per prospect, keeping
// the output index-aligned with the input regardless of completion order.
package draft

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/outreachkit/prospector/internal/llm"
	"github.com/outreachkit/prospector/internal/prospect"
	"golang.org/x/time/rate"
)

type FailurePolicy int

const (
	// FailurePolicyPartialOutput isolates per-prospect failures and reports
	// them in Report.Failed while the rest of the batch completes.
	FailurePolicyPartialOutput FailurePolicy = iota
	// FailurePolicyFailFast aborts the whole batch on the first failure and
	// surfaces one aggregate error.
	FailurePolicyFailFast
)

type Options struct {
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration

	// RateLimitRPS is a global limit across all workers. Set to <=0 to disable.
	RateLimitRPS float64

	FailurePolicy FailurePolicy

	// BackoffInitial is the initial sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitterFrac <= 0 {
		o.BackoffJitterFrac = 0.2
	}
	return o
}

// Failure names one prospect whose draft call failed.
type Failure struct {
	Index    int
	Prospect prospect.Prospect
	Err      error
}

// Report is the structured outcome of one generation batch.
//
// Prospects is index-aligned with the input: successfully drafted entries
// carry exactly one EmailMessage from "me"; failed entries are the input
// prospect unchanged, and appear in Failed.
type Report struct {
	Prospects []prospect.Prospect
	Failed    []Failure
}

// Drafted returns only the prospects that were successfully drafted, in
// input order.
func (r Report) Drafted() []prospect.Prospect {
	out := make([]prospect.Prospect, 0, len(r.Prospects))
	for _, p := range r.Prospects {
		if len(p.EmailMessages) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// BatchError is the aggregate error surfaced under FailurePolicyFailFast.
type BatchError struct {
	Failure Failure
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("draft batch aborted: prospect %d (%s): %v",
		e.Failure.Index, e.Failure.Prospect.LinkedInURL, e.Failure.Err)
}

func (e *BatchError) Unwrap() error { return e.Failure.Err }

// GenerateAll drafts one email per prospect. The returned Report's Prospects
// slice has the same length and order as the input.
//
// Under FailurePolicyPartialOutput the error is nil unless the context is
// cancelled; per-prospect failures live in Report.Failed. Under
// FailurePolicyFailFast the first failure cancels the rest of the batch and
// is returned as a *BatchError.
func GenerateAll(ctx context.Context, prospects []prospect.Prospect, drafter llm.Drafter, style llm.Style, opts Options) (Report, error) {
	opts = opts.withDefaults()
	style = style.WithDefaults()

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.FailurePolicy == FailurePolicyFailFast {
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	out := make([]prospect.Prospect, len(prospects))
	errs := make([]error, len(prospects))

	type job struct {
		idx int
		p   prospect.Prospect
	}
	jobs := make(chan job)

	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstFailure *Failure
	fail := func(f Failure) {
		mu.Lock()
		if firstFailure == nil {
			firstFailure = &f
			if cancel != nil {
				cancel()
			}
		}
		mu.Unlock()
	}

	worker := func() {
		defer wg.Done()
		for j := range jobs {
			if runCtx.Err() != nil {
				out[j.idx] = j.p
				errs[j.idx] = runCtx.Err()
				continue
			}
			text, err := draftWithRetry(runCtx, drafter, j.p, style, limiter, opts)
			if err != nil {
				out[j.idx] = j.p
				errs[j.idx] = err
				if opts.FailurePolicy == FailurePolicyFailFast {
					fail(Failure{Index: j.idx, Prospect: j.p, Err: err})
					return
				}
				continue
			}
			drafted := j.p
			drafted.EmailMessages = []prospect.EmailMessage{{From: "me", Text: text}}
			out[j.idx] = drafted
		}
	}

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go worker()
	}

	for i, p := range prospects {
		select {
		case jobs <- job{idx: i, p: p}:
		case <-runCtx.Done():
			// Undispatched prospects fail with the cancellation cause.
			out[i] = p
			errs[i] = runCtx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	if opts.FailurePolicy == FailurePolicyFailFast {
		mu.Lock()
		f := firstFailure
		mu.Unlock()
		if f != nil {
			return Report{}, &BatchError{Failure: *f}
		}
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	report := Report{Prospects: out}
	for i, err := range errs {
		if err != nil {
			report.Failed = append(report.Failed, Failure{Index: i, Prospect: prospects[i], Err: err})
		}
	}
	return report, nil
}

func draftWithRetry(ctx context.Context, drafter llm.Drafter, p prospect.Prospect, style llm.Style, limiter *rate.Limiter, opts Options) (string, error) {
	var lastErr error
	attempts := 1 + opts.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if opts.RequestTimeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, opts.RequestTimeout)
		}
		text, err := drafter.DraftEmail(reqCtx, p, style)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return text, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		if !isTransient(err) || attempt == attempts-1 {
			return "", err
		}

		sleep := backoffSleep(opts.BackoffInitial, opts.BackoffMax, opts.BackoffJitterFrac, attempt)
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *llm.TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	// Apply +/- jitterFrac.
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
