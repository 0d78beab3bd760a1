package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobsift/internal/model"
)

// Config is the root configuration for jobsift.
type Config struct {
	DatabasePath string
	Schedule     ScheduleConfig
	Source       SourceConfig
	AI           AIConfig
	Digest       DigestConfig
	RateLimit    RateLimitConfig
	Server       ServerConfig
	Blacklist    []string
	Groups       []model.SearchGroup
}

// ScheduleConfig controls the cron trigger.
type ScheduleConfig struct {
	Cron       string // standard 5-field spec or descriptor, e.g. "@every 6h"
	RunOnStart bool
}

// SourceConfig points at the job search provider.
type SourceConfig struct {
	BaseURL        string
	Actor          string
	Token          string // expanded from env var by Load
	MaxResults     int
	Timeout        time.Duration // bounds one group's search call
	RecencyWindow  time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// AIConfig selects and configures the judge's model backend.
type AIConfig struct {
	Provider string // "openai" or "gemini"
	BaseURL  string // empty means the provider default
	Model    string
	APIKey   string        // expanded from env var by Load
	Timeout  time.Duration // per-request timeout
}

// DigestConfig controls the post-run digest.
type DigestConfig struct {
	Enabled    bool
	Type       string // "email", "slack" or "log"
	Recipient  string // comma-separated addresses for email
	WebhookURL string // required if type is "slack"
	Timeout    time.Duration
	SMTP       SMTPConfig
}

// SMTPConfig holds mail server settings for email digests.
type SMTPConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	From       string `yaml:"from"`
	DisableTLS bool   `yaml:"disable_tls"`
}

// RateLimitConfig paces outbound calls.
type RateLimitConfig struct {
	AIRequestsPerMinute int           // 0 means unlimited
	SourceMinInterval   time.Duration // minimum gap between provider searches
}

// ServerConfig controls the manual trigger HTTP API.
type ServerConfig struct {
	Enabled bool
	Addr    string
}

const (
	defaultDatabasePath  = "jobsift.db"
	defaultCron          = "0 */6 * * *"
	defaultSourceBaseURL = "https://api.apify.com/v2"
	defaultMaxResults    = 100
	defaultServerAddr    = "127.0.0.1:8080"
	slackWebhookPrefix   = "https://hooks.slack.com/"
)

var defaultModels = map[string]string{
	"openai": "gpt-4o-mini",
	"gemini": "gemini-2.5-flash",
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Database  rawDatabaseConfig  `yaml:"database"`
	Schedule  rawScheduleConfig  `yaml:"schedule"`
	Source    rawSourceConfig    `yaml:"source"`
	AI        rawAIConfig        `yaml:"ai"`
	Digest    rawDigestConfig    `yaml:"digest"`
	RateLimit rawRateLimitConfig `yaml:"rate_limit"`
	Server    rawServerConfig    `yaml:"server"`
	Blacklist []string           `yaml:"blacklist"`
	Groups    []rawGroupConfig   `yaml:"groups"`
}

type rawDatabaseConfig struct {
	Path string `yaml:"path"`
}

type rawScheduleConfig struct {
	Cron       string `yaml:"cron"`
	RunOnStart bool   `yaml:"run_on_start"`
}

type rawSourceConfig struct {
	BaseURL        string `yaml:"base_url"`
	Actor          string `yaml:"actor"`
	Token          string `yaml:"token"`
	MaxResults     int    `yaml:"max_results"`
	Timeout        string `yaml:"timeout"`
	RecencyWindow  string `yaml:"recency_window"`
	MaxRetries     *int   `yaml:"max_retries"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
}

type rawAIConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
}

type rawDigestConfig struct {
	Enabled    bool       `yaml:"enabled"`
	Type       string     `yaml:"type"`
	Recipient  string     `yaml:"recipient"`
	WebhookURL string     `yaml:"webhook_url"`
	Timeout    string     `yaml:"timeout"`
	SMTP       SMTPConfig `yaml:"smtp"`
}

type rawRateLimitConfig struct {
	AIRequestsPerMinute int    `yaml:"ai_requests_per_minute"`
	SourceMinInterval   string `yaml:"source_min_interval"`
}

type rawServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type rawGroupConfig struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Active       *bool         `yaml:"active"`
	Keywords     []string      `yaml:"keywords"`
	Locations    []string      `yaml:"locations"`
	WorkModes    []string      `yaml:"work_modes"`
	JobType      string        `yaml:"job_type"`
	TitleFilter  string        `yaml:"title_filter"`
	SystemPrompt string        `yaml:"system_prompt"`
	Thresholds   rawThresholds `yaml:"thresholds"`
}

type rawThresholds struct {
	NoMatchMax   *int `yaml:"no_match_max"`
	WeakMatchMax *int `yaml:"weak_match_max"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// A .env file next to the config is loaded first; variables already set in
// the environment win.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := convert(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func convert(raw rawConfig) (*Config, error) {
	var err error
	cfg := &Config{
		DatabasePath: orDefault(raw.Database.Path, defaultDatabasePath),
		Schedule: ScheduleConfig{
			Cron:       orDefault(raw.Schedule.Cron, defaultCron),
			RunOnStart: raw.Schedule.RunOnStart,
		},
		Source: SourceConfig{
			BaseURL:    orDefault(raw.Source.BaseURL, defaultSourceBaseURL),
			Actor:      raw.Source.Actor,
			Token:      raw.Source.Token,
			MaxResults: raw.Source.MaxResults,
			MaxRetries: 2,
		},
		AI: AIConfig{
			Provider: strings.ToLower(orDefault(raw.AI.Provider, "openai")),
			BaseURL:  raw.AI.BaseURL,
			Model:    raw.AI.Model,
			APIKey:   raw.AI.APIKey,
		},
		Digest: DigestConfig{
			Enabled:    raw.Digest.Enabled,
			Type:       strings.ToLower(orDefault(raw.Digest.Type, "log")),
			Recipient:  raw.Digest.Recipient,
			WebhookURL: raw.Digest.WebhookURL,
			SMTP:       raw.Digest.SMTP,
		},
		RateLimit: RateLimitConfig{
			AIRequestsPerMinute: raw.RateLimit.AIRequestsPerMinute,
		},
		Server: ServerConfig{
			Enabled: raw.Server.Enabled,
			Addr:    orDefault(raw.Server.Addr, defaultServerAddr),
		},
		Blacklist: raw.Blacklist,
	}

	if cfg.Source.MaxResults == 0 {
		cfg.Source.MaxResults = defaultMaxResults
	}
	if raw.Source.MaxRetries != nil {
		cfg.Source.MaxRetries = *raw.Source.MaxRetries
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModels[cfg.AI.Provider]
	}
	if cfg.Digest.SMTP.Port == 0 {
		cfg.Digest.SMTP.Port = 587
	}

	durations := []struct {
		name  string
		value string
		def   time.Duration
		dst   *time.Duration
	}{
		{"source.timeout", raw.Source.Timeout, 5 * time.Minute, &cfg.Source.Timeout},
		{"source.recency_window", raw.Source.RecencyWindow, 48 * time.Hour, &cfg.Source.RecencyWindow},
		{"source.retry_base_delay", raw.Source.RetryBaseDelay, 5 * time.Second, &cfg.Source.RetryBaseDelay},
		{"ai.timeout", raw.AI.Timeout, 60 * time.Second, &cfg.AI.Timeout},
		{"digest.timeout", raw.Digest.Timeout, 30 * time.Second, &cfg.Digest.Timeout},
		{"rate_limit.source_min_interval", raw.RateLimit.SourceMinInterval, 0, &cfg.RateLimit.SourceMinInterval},
	}
	for _, d := range durations {
		*d.dst = d.def
		if d.value == "" {
			continue
		}
		if *d.dst, err = time.ParseDuration(d.value); err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", d.name, d.value, err)
		}
	}

	for i, rg := range raw.Groups {
		g, err := convertGroup(rg)
		if err != nil {
			return nil, fmt.Errorf("groups[%d]: %w", i, err)
		}
		cfg.Groups = append(cfg.Groups, g)
	}
	return cfg, nil
}

func convertGroup(rg rawGroupConfig) (model.SearchGroup, error) {
	g := model.SearchGroup{
		ID:           strings.TrimSpace(rg.ID),
		Name:         orDefault(strings.TrimSpace(rg.Name), strings.TrimSpace(rg.ID)),
		Active:       rg.Active == nil || *rg.Active,
		Keywords:     rg.Keywords,
		Locations:    rg.Locations,
		JobType:      rg.JobType,
		TitleFilter:  rg.TitleFilter,
		SystemPrompt: strings.TrimSpace(rg.SystemPrompt),
		Thresholds:   model.Thresholds{NoMatchMax: 50, WeakMatchMax: 70},
	}
	if rg.Thresholds.NoMatchMax != nil {
		g.Thresholds.NoMatchMax = *rg.Thresholds.NoMatchMax
	}
	if rg.Thresholds.WeakMatchMax != nil {
		g.Thresholds.WeakMatchMax = *rg.Thresholds.WeakMatchMax
	}
	for _, m := range rg.WorkModes {
		wm := model.ParseWorkMode(m)
		if wm == "" {
			return g, fmt.Errorf("unknown work mode %q", m)
		}
		g.WorkModes = append(g.WorkModes, wm)
	}
	return g, nil
}

func validate(cfg *Config) error {
	if cfg.Source.Actor == "" {
		return fmt.Errorf("source.actor is required")
	}
	if cfg.Source.MaxResults < 0 {
		return fmt.Errorf("source.max_results must not be negative, got %d", cfg.Source.MaxResults)
	}
	if cfg.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive, got %v", cfg.Source.Timeout)
	}
	if cfg.Source.RecencyWindow <= 0 {
		return fmt.Errorf("source.recency_window must be positive, got %v", cfg.Source.RecencyWindow)
	}
	if cfg.Source.MaxRetries < 0 {
		return fmt.Errorf("source.max_retries must not be negative, got %d", cfg.Source.MaxRetries)
	}

	if _, ok := defaultModels[cfg.AI.Provider]; !ok {
		return fmt.Errorf("ai.provider must be \"openai\" or \"gemini\", got %q", cfg.AI.Provider)
	}
	if cfg.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive, got %v", cfg.AI.Timeout)
	}
	if cfg.RateLimit.AIRequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit.ai_requests_per_minute must not be negative")
	}

	if cfg.Digest.Enabled {
		if err := validateDigest(cfg.Digest); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(cfg.Groups))
	for i, g := range cfg.Groups {
		if g.ID == "" {
			return fmt.Errorf("groups[%d].id is required", i)
		}
		if seen[g.ID] {
			return fmt.Errorf("duplicate group id %q", g.ID)
		}
		seen[g.ID] = true
		if len(g.Keywords) == 0 {
			return fmt.Errorf("group %q: at least one keyword is required", g.ID)
		}
		if err := g.Thresholds.Validate(); err != nil {
			return fmt.Errorf("group %q thresholds: %w", g.ID, err)
		}
	}

	return nil
}

func validateDigest(d DigestConfig) error {
	switch d.Type {
	case "log":
	case "slack":
		if d.WebhookURL == "" {
			return fmt.Errorf("digest.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(d.WebhookURL, slackWebhookPrefix) {
			return fmt.Errorf("digest.webhook_url must start with %s", slackWebhookPrefix)
		}
	case "email":
		if strings.TrimSpace(d.Recipient) == "" {
			return fmt.Errorf("digest.recipient is required when type is \"email\"")
		}
		if d.SMTP.Host == "" || d.SMTP.From == "" {
			return fmt.Errorf("digest.smtp.host and digest.smtp.from are required when type is \"email\"")
		}
	default:
		return fmt.Errorf("digest.type must be \"email\", \"slack\" or \"log\", got %q", d.Type)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("digest.timeout must be positive, got %v", d.Timeout)
	}
	return nil
}

// Credentials lists the secrets a run cannot start without, keyed by
// setting name.
func (c *Config) Credentials() map[string]string {
	return map[string]string{
		"source.token": c.Source.Token,
		"ai.api_key":   c.AI.APIKey,
	}
}

// GroupNames maps group ids to display names.
func (c *Config) GroupNames() map[string]string {
	names := make(map[string]string, len(c.Groups))
	for _, g := range c.Groups {
		names[g.ID] = g.Name
	}
	return names
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
