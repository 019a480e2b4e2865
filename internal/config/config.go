// Package config loads runtime configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration. The YAML file shape lives in
// fileConfig; env overrides come last via FromEnv.
type Config struct {
	Search struct {
		BaseURL         string
		PollInterval    time.Duration
		PollTimeout     time.Duration
		MaxPollFailures int
	}

	LLM struct {
		// Provider is "openai" or "gemini".
		Provider string
		APIKey   string
		Model    string
		BaseURL  string
	}

	Store struct {
		// Path is the sqlite database file.
		Path string
	}

	Draft struct {
		Workers        int
		MaxRetries     int
		RequestTimeout time.Duration
		RateLimitRPS   float64
		FailFast       bool
	}

	HTTP struct {
		Addr string
	}
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	cfg.Search.PollInterval = 2 * time.Second
	cfg.Search.PollTimeout = 5 * time.Minute
	cfg.Search.MaxPollFailures = 5
	cfg.LLM.Provider = "openai"
	cfg.LLM.Model = "o4-mini"
	cfg.Store.Path = "prospector.db"
	cfg.Draft.Workers = 4
	cfg.Draft.MaxRetries = 2
	cfg.Draft.RequestTimeout = 60 * time.Second
	cfg.HTTP.Addr = ":8080"
	return cfg
}

// fileConfig is the YAML shape. Durations are strings ("2s", "5m") parsed
// with time.ParseDuration, same as the env overlay. Pointers distinguish
// "absent" from zero values.
type fileConfig struct {
	Search struct {
		BaseURL         *string `yaml:"base_url"`
		PollInterval    *string `yaml:"poll_interval"`
		PollTimeout     *string `yaml:"poll_timeout"`
		MaxPollFailures *int    `yaml:"max_poll_failures"`
	} `yaml:"search"`

	LLM struct {
		Provider *string `yaml:"provider"`
		APIKey   *string `yaml:"api_key"`
		Model    *string `yaml:"model"`
		BaseURL  *string `yaml:"base_url"`
	} `yaml:"llm"`

	Store struct {
		Path *string `yaml:"path"`
	} `yaml:"store"`

	Draft struct {
		Workers        *int     `yaml:"workers"`
		MaxRetries     *int     `yaml:"max_retries"`
		RequestTimeout *string  `yaml:"request_timeout"`
		RateLimitRPS   *float64 `yaml:"rate_limit_rps"`
		FailFast       *bool    `yaml:"fail_fast"`
	} `yaml:"draft"`

	HTTP struct {
		Addr *string `yaml:"addr"`
	} `yaml:"http"`
}

// Load reads path over the defaults. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return applyFile(cfg, fc)
}

func applyFile(cfg Config, fc fileConfig) (Config, error) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	var err error
	setDuration := func(dst *time.Duration, src *string, field string) {
		if src == nil || err != nil {
			return
		}
		d, perr := time.ParseDuration(strings.TrimSpace(*src))
		if perr != nil {
			err = fmt.Errorf("invalid %s=%q: %w", field, *src, perr)
			return
		}
		*dst = d
	}

	setString(&cfg.Search.BaseURL, fc.Search.BaseURL)
	setDuration(&cfg.Search.PollInterval, fc.Search.PollInterval, "search.poll_interval")
	setDuration(&cfg.Search.PollTimeout, fc.Search.PollTimeout, "search.poll_timeout")
	setInt(&cfg.Search.MaxPollFailures, fc.Search.MaxPollFailures)

	setString(&cfg.LLM.Provider, fc.LLM.Provider)
	setString(&cfg.LLM.APIKey, fc.LLM.APIKey)
	setString(&cfg.LLM.Model, fc.LLM.Model)
	setString(&cfg.LLM.BaseURL, fc.LLM.BaseURL)

	setString(&cfg.Store.Path, fc.Store.Path)

	setInt(&cfg.Draft.Workers, fc.Draft.Workers)
	setInt(&cfg.Draft.MaxRetries, fc.Draft.MaxRetries)
	setDuration(&cfg.Draft.RequestTimeout, fc.Draft.RequestTimeout, "draft.request_timeout")
	if fc.Draft.RateLimitRPS != nil {
		cfg.Draft.RateLimitRPS = *fc.Draft.RateLimitRPS
	}
	if fc.Draft.FailFast != nil {
		cfg.Draft.FailFast = *fc.Draft.FailFast
	}

	setString(&cfg.HTTP.Addr, fc.HTTP.Addr)

	return cfg, err
}

// FromEnv overlays environment variables onto cfg. Env wins over file.
func FromEnv(cfg Config) (Config, error) {
	var err error

	if v := strings.TrimSpace(os.Getenv("SEARCH_BASE_URL")); v != "" {
		cfg.Search.BaseURL = v
	}
	if cfg.Search.PollInterval, err = envDuration("POLL_INTERVAL", cfg.Search.PollInterval); err != nil {
		return cfg, err
	}
	if cfg.Search.PollTimeout, err = envDuration("POLL_TIMEOUT", cfg.Search.PollTimeout); err != nil {
		return cfg, err
	}
	if cfg.Search.MaxPollFailures, err = envInt("MAX_POLL_FAILURES", cfg.Search.MaxPollFailures); err != nil {
		return cfg, err
	}

	if v := strings.TrimSpace(os.Getenv("LLM_PROVIDER")); v != "" {
		cfg.LLM.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		cfg.LLM.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_BASE_URL")); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("STORE_PATH")); v != "" {
		cfg.Store.Path = v
	}

	if cfg.Draft.Workers, err = envInt("WORKERS", cfg.Draft.Workers); err != nil {
		return cfg, err
	}
	if cfg.Draft.MaxRetries, err = envInt("MAX_RETRIES", cfg.Draft.MaxRetries); err != nil {
		return cfg, err
	}
	if cfg.Draft.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", cfg.Draft.RequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.Draft.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", cfg.Draft.RateLimitRPS); err != nil {
		return cfg, err
	}
	if cfg.Draft.FailFast, err = envBool("FAIL_FAST", cfg.Draft.FailFast); err != nil {
		return cfg, err
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}

	return cfg, nil
}

// Validate checks the fields every run needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Search.BaseURL) == "" {
		return fmt.Errorf("search.base_url (env SEARCH_BASE_URL) is required")
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider must be openai or gemini (got %q)", c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("llm.api_key (env LLM_API_KEY) is required")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("llm.model (env LLM_MODEL) is required")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path (env STORE_PATH) is required")
	}
	return nil
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
