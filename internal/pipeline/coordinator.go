// Package pipeline composes the search poller, normalizer, draft
// orchestrator and campaign store into the user-facing operations.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/outreachkit/prospector/internal/draft"
	"github.com/outreachkit/prospector/internal/llm"
	"github.com/outreachkit/prospector/internal/prospect"
	"github.com/outreachkit/prospector/internal/store"
	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"
)

// Searcher is the prospect-acquisition surface (the job poller).
type Searcher interface {
	SubmitAndAwait(ctx context.Context, description string) ([]prospect.RawRecord, error)
}

// Coordinator wires the pipeline stages together. One logical operation runs
// at a time per caller session; the store is the only cross-operation shared
// resource.
type Coordinator struct {
	Searcher   Searcher
	Summarizer llm.Summarizer
	Drafter    llm.Drafter
	Normalizer prospect.Normalizer
	Campaigns  store.Campaigns

	DraftOptions draft.Options

	// Logger defaults to the standard logger.
	Logger *log.Logger
}

// SearchResult is the outcome of one prospect search.
type SearchResult struct {
	Prospects     []prospect.Prospect
	CampaignTitle string
}

// SearchProspects generates a short campaign title and locates matching
// prospects. The summarization call and the search job run concurrently;
// the first failing stage's error surfaces.
func (c *Coordinator) SearchProspects(ctx context.Context, description string) (SearchResult, error) {
	if strings.TrimSpace(description) == "" {
		return SearchResult{}, fmt.Errorf("description is required")
	}

	runID := newRunID()
	start := time.Now()
	c.logf("run=%s op=search description_len=%d", runID, len(description))

	var title string
	var records []prospect.RawRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := c.Summarizer.SummarizeTitle(gctx, description)
		if err != nil {
			return fmt.Errorf("summarize title: %w", err)
		}
		title = t
		return nil
	})
	g.Go(func() error {
		r, err := c.Searcher.SubmitAndAwait(gctx, description)
		if err != nil {
			return err
		}
		records = r
		return nil
	})
	if err := g.Wait(); err != nil {
		c.logf("run=%s op=search outcome=error elapsed=%s err=%v", runID, time.Since(start).Round(time.Millisecond), err)
		return SearchResult{}, err
	}

	prospects, err := c.Normalizer.Normalize(records)
	if err != nil {
		c.logf("run=%s op=search outcome=error stage=normalize err=%v", runID, err)
		return SearchResult{}, err
	}

	c.logf("run=%s op=search outcome=ok prospects=%d elapsed=%s", runID, len(prospects), time.Since(start).Round(time.Millisecond))
	return SearchResult{Prospects: prospects, CampaignTitle: title}, nil
}

// GenerateEmails drafts one email per prospect, preserving input order and
// reporting per-prospect failures.
func (c *Coordinator) GenerateEmails(ctx context.Context, prospects []prospect.Prospect, style llm.Style) (draft.Report, error) {
	runID := newRunID()
	start := time.Now()
	c.logf("run=%s op=generate prospects=%d", runID, len(prospects))

	report, err := draft.GenerateAll(ctx, prospects, c.Drafter, style, c.DraftOptions)
	if err != nil {
		c.logf("run=%s op=generate outcome=error elapsed=%s err=%v", runID, time.Since(start).Round(time.Millisecond), err)
		return draft.Report{}, err
	}

	c.logf("run=%s op=generate outcome=ok drafted=%d failed=%d elapsed=%s",
		runID, len(report.Drafted()), len(report.Failed), time.Since(start).Round(time.Millisecond))
	return report, nil
}

// CreateCampaign wraps the prospects into a campaign and hands it to the
// store. Returns the storage key.
func (c *Coordinator) CreateCampaign(ctx context.Context, title string, prospects []prospect.Prospect) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("campaign title is required")
	}

	key := store.NewKey(time.Now())
	campaign := prospect.Campaign{Title: title, Prospects: prospects}
	if err := c.Campaigns.Put(ctx, key, campaign); err != nil {
		return "", err
	}

	c.logf("op=createCampaign key=%s prospects=%d", key, len(prospects))
	return key, nil
}

// ListCampaigns returns every stored campaign.
func (c *Coordinator) ListCampaigns(ctx context.Context) ([]prospect.Campaign, error) {
	return c.Campaigns.ListAll(ctx)
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func newRunID() string {
	return uuid.New().String()[:8]
}
