package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/adapter"
	"github.com/amishk599/jobsift/internal/ai"
	"github.com/amishk599/jobsift/internal/config"
	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/notifier"
	"github.com/amishk599/jobsift/internal/pipeline"
	"github.com/amishk599/jobsift/internal/ratelimit"
	"github.com/amishk599/jobsift/internal/retry"
	"github.com/amishk599/jobsift/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobsift",
	Short: "Scheduled job search with an AI judge",
	Long:  "jobsift searches a job provider per search group, filters and deduplicates postings, scores them with an LLM and mails a digest of strong matches.",
	// Default to `start` so that `jobsift` with no args runs the daemon.
	RunE:         runStart,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSIFT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBSIFT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBSIFT_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// setupSender picks the digest transport. It never returns nil so that
// `digest test` works even while the digest is disabled.
func setupSender(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.DigestSender {
	switch cfg.Digest.Type {
	case "email":
		logger.Debug("using smtp digest sender", "host", cfg.Digest.SMTP.Host)
		return notifier.NewSMTPSender(notifier.SMTPConfig{
			Host:       cfg.Digest.SMTP.Host,
			Port:       cfg.Digest.SMTP.Port,
			Username:   cfg.Digest.SMTP.Username,
			Password:   cfg.Digest.SMTP.Password,
			From:       cfg.Digest.SMTP.From,
			DisableTLS: cfg.Digest.SMTP.DisableTLS,
		}, logger)
	case "slack":
		logger.Debug("using slack digest sender")
		return notifier.NewSlackSender(cfg.Digest.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogSender(logger)
	}
}

// setupSource builds the posting source: retries sit inside the pacing
// limiter so every attempt is spaced out.
func setupSource(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.PostingSource {
	var src model.PostingSource = adapter.NewApifyAdapter(adapter.ApifyConfig{
		BaseURL:       cfg.Source.BaseURL,
		Actor:         cfg.Source.Actor,
		Token:         cfg.Source.Token,
		RecencyWindow: cfg.Source.RecencyWindow,
	}, httpClient, logger)
	src = retry.NewRetrySource(src, cfg.Source.MaxRetries, cfg.Source.RetryBaseDelay, logger)
	return ratelimit.NewLimitedSource(src, ratelimit.MinInterval(cfg.RateLimit.SourceMinInterval))
}

// setupJudge builds the LLM backend named by ai.provider behind the AI rate
// limiter. An empty API key is not an error here; the run's preflight
// records it as a failed run.
func setupJudge(cfg *config.Config, logger *slog.Logger) (*ai.Judge, error) {
	// Per-call deadlines come from ai.timeout; the client itself has none.
	httpClient := &http.Client{}

	var provider ai.LLMProvider
	switch cfg.AI.Provider {
	case "gemini":
		provider = ai.NewGeminiProvider(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL, httpClient)
	case "openai":
		provider = ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, httpClient)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.AI.Provider)
	}
	logger.Debug("judge configured", "provider", cfg.AI.Provider, "model", cfg.AI.Model)

	limited := ratelimit.NewLimitedProvider(provider, ratelimit.PerMinute(cfg.RateLimit.AIRequestsPerMinute))
	return ai.NewJudge(limited, cfg.AI.Timeout, logger), nil
}

// setupOrchestrator wires the whole pipeline over an open store.
func setupOrchestrator(cfg *config.Config, st *store.SQLiteStore, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	judge, err := setupJudge(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("set up judge: %w", err)
	}

	// The source call is bounded by source.timeout per group instead of a
	// client timeout, since provider runs can take minutes.
	source := setupSource(cfg, &http.Client{}, logger)

	var sender model.DigestSender
	if cfg.Digest.Enabled {
		sender = setupSender(cfg, httpClient, logger)
	}

	pcfg := pipeline.Config{
		Groups:          cfg.Groups,
		Blacklist:       cfg.Blacklist,
		MaxResults:      cfg.Source.MaxResults,
		SourceTimeout:   cfg.Source.Timeout,
		DigestEnabled:   cfg.Digest.Enabled,
		DigestRecipient: cfg.Digest.Recipient,
		DigestTimeout:   cfg.Digest.Timeout,
		Credentials:     cfg.Credentials(),
	}
	return pipeline.NewOrchestrator(pcfg, source, judge, st, sender, nil, logger), nil
}

// mustLoad loads config and opens the store, exiting on failure.
func mustLoad(logger *slog.Logger) (*config.Config, *store.SQLiteStore) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	st, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	return cfg, st
}
