package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/outreachkit/prospector/internal/config"
)

func TestLoadFileOverDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
search:
  base_url: http://localhost:8000
  poll_interval: 500ms
llm:
  provider: gemini
  api_key: test-key
  model: gemini-2.5-flash
draft:
  workers: 12
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Search.BaseURL != "http://localhost:8000" {
		t.Fatalf("base url = %q", cfg.Search.BaseURL)
	}
	if cfg.Search.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval = %v", cfg.Search.PollInterval)
	}
	if cfg.Search.PollTimeout != 5*time.Minute {
		t.Fatalf("default poll timeout not kept: %v", cfg.Search.PollTimeout)
	}
	if cfg.Draft.Workers != 12 {
		t.Fatalf("workers = %d", cfg.Draft.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	t.Setenv("SEARCH_BASE_URL", "http://env-host:9000")
	t.Setenv("WORKERS", "3")
	t.Setenv("FAIL_FAST", "true")

	cfg, err := config.FromEnv(config.Default())
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Search.BaseURL != "http://env-host:9000" {
		t.Fatalf("base url = %q", cfg.Search.BaseURL)
	}
	if cfg.Draft.Workers != 3 {
		t.Fatalf("workers = %d", cfg.Draft.Workers)
	}
	if !cfg.Draft.FailFast {
		t.Fatal("fail fast not set")
	}
}

func TestLoadRejectsBadFileDuration(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("search:\n  poll_interval: soon\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Fatal("expected an error for a bad duration string")
	}
}

func TestEnvRejectsGarbage(t *testing.T) {
	t.Setenv("POLL_TIMEOUT", "not-a-duration")

	if _, err := config.FromEnv(config.Default()); err == nil {
		t.Fatal("expected an error for a bad duration")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing base_url to fail validation")
	}

	cfg.Search.BaseURL = "http://localhost:8000"
	cfg.LLM.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}

	cfg.LLM.Provider = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown provider to fail validation")
	}
}
