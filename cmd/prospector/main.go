package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outreachkit/prospector/internal/config"
	"github.com/outreachkit/prospector/internal/draft"
	"github.com/outreachkit/prospector/internal/httpapi"
	"github.com/outreachkit/prospector/internal/llm"
	"github.com/outreachkit/prospector/internal/llm/gemini"
	"github.com/outreachkit/prospector/internal/llm/openai"
	"github.com/outreachkit/prospector/internal/pipeline"
	"github.com/outreachkit/prospector/internal/progress"
	"github.com/outreachkit/prospector/internal/prospect"
	"github.com/outreachkit/prospector/internal/search"
	"github.com/outreachkit/prospector/internal/store"
	"github.com/outreachkit/prospector/internal/util"
	"github.com/outreachkit/prospector/internal/version"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version":
		fmt.Println(version.Current)
		return
	case "serve":
		os.Exit(runServe(ctx, os.Args[2:]))
	case "search":
		os.Exit(runSearch(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func usage(w *os.File) {
	_, _ = fmt.Fprintln(w, `prospector - prospect search and outreach email generation

Usage:
  prospector serve  [flags]   Run the HTTP API
  prospector search [flags]   One-shot: search prospects, draft emails, print JSON
  prospector version          Print the release version
  prospector help             Show this help

Common flags:
  -config <path>   Optional YAML config file (env vars override it)`)
}

func loadConfig(fs *flag.FlagSet, args []string) (config.Config, error) {
	configPath := fs.String("config", "", "YAML config file path")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err = config.FromEnv(cfg)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func buildCoordinator(ctx context.Context, cfg config.Config, logger *log.Logger) (*pipeline.Coordinator, func(), error) {
	client, err := search.NewClient(cfg.Search.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("search client: %w", err)
	}

	var ai interface {
		llm.Drafter
		llm.Summarizer
	}
	switch cfg.LLM.Provider {
	case "openai":
		ai, err = openai.New(openai.Config{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		})
	case "gemini":
		ai, err = gemini.New(ctx, gemini.Config{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		})
	default:
		err = fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("llm backend: %w", err)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	policy := draft.FailurePolicyPartialOutput
	if cfg.Draft.FailFast {
		policy = draft.FailurePolicyFailFast
	}

	coord := &pipeline.Coordinator{
		Searcher: search.Poller{
			Client:                 client,
			Interval:               cfg.Search.PollInterval,
			Timeout:                cfg.Search.PollTimeout,
			MaxConsecutiveFailures: cfg.Search.MaxPollFailures,
		},
		Summarizer: ai,
		Drafter:    ai,
		Normalizer: prospect.Normalizer{},
		Campaigns:  store.Campaigns{Store: db},
		DraftOptions: draft.Options{
			Workers:        cfg.Draft.Workers,
			MaxRetries:     cfg.Draft.MaxRetries,
			RequestTimeout: cfg.Draft.RequestTimeout,
			RateLimitRPS:   cfg.Draft.RateLimitRPS,
			FailurePolicy:  policy,
		},
		Logger: logger,
	}
	cleanup := func() { _ = db.Close() }
	return coord, cleanup, nil
}

func runServe(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	coord, cleanup, err := buildCoordinator(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "startup error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	defer cleanup()

	api := &httpapi.Server{Coordinator: coord, Logger: logger}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
			return 1
		}
		logger.Printf("shut down")
		return 0
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			_, _ = fmt.Fprintf(os.Stderr, "server error: %s\n", util.RedactSecrets(err.Error()))
			return 1
		}
		return 0
	}
}

func runSearch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	description := fs.String("description", "", "Prospect search description (required)")
	tone := fs.String("tone", llm.StyleAuto, "Email tone")
	length := fs.String("length", llm.StyleAuto, "Email length")
	style := fs.String("style", llm.StyleAuto, "Email style")
	styleContext := fs.String("context", "", "Extra context for the email drafts")
	generate := fs.Bool("generate", true, "Draft one email per prospect after searching")
	save := fs.Bool("save", false, "Store the result as a campaign")
	showProgress := fs.Bool("progress", false, "Print progress estimates to stderr")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	if *description == "" {
		_, _ = fmt.Fprintln(os.Stderr, "search requires --description")
		return 2
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	coord, cleanup, err := buildCoordinator(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "startup error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	defer cleanup()

	onSnapshot := func(progress.Snapshot) {}
	if *showProgress {
		onSnapshot = func(s progress.Snapshot) {
			_, _ = fmt.Fprintf(os.Stderr, "progress=%.1f phase=%s\n", s.Value, s.Phase)
		}
	}

	result, err := pipeline.RunWithProgress(ctx, progress.Config{}, onSnapshot,
		func(ctx context.Context) (pipeline.SearchResult, error) {
			return coord.SearchProspects(ctx, *description)
		})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "search failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}

	prospects := result.Prospects
	if *generate && len(prospects) > 0 {
		report, err := coord.GenerateEmails(ctx, prospects, llm.Style{
			Tone:    *tone,
			Length:  *length,
			Style:   *style,
			Context: *styleContext,
		})
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "generation failed: %s\n", util.RedactSecrets(err.Error()))
			return 1
		}
		for _, f := range report.Failed {
			logger.Printf("draft failed: prospect=%s err=%v", f.Prospect.LinkedInURL, f.Err)
		}
		prospects = report.Prospects
	}

	if *save {
		key, err := coord.CreateCampaign(ctx, result.CampaignTitle, prospects)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			return 1
		}
		logger.Printf("campaign saved: key=%s", key)
	}

	out := struct {
		CampaignTitle string              `json:"campaignTitle"`
		Prospects     []prospect.Prospect `json:"prospects"`
	}{result.CampaignTitle, prospects}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "encode error: %v\n", err)
		return 1
	}
	return 0
}
