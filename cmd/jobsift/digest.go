package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/notifier"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Digest subcommands",
}

var digestTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test digest",
	Long:  "Sends a one-job sample digest through the configured sender, even if the digest is disabled.",
	RunE:  runDigestTest,
}

func init() {
	rootCmd.AddCommand(digestCmd)
	digestCmd.AddCommand(digestTestCmd)
}

func runDigestTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	sender := setupSender(cfg, httpClient, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Digest.Timeout)
	defer cancel()
	if err := notifier.SendTestDigest(ctx, sender, cfg.Digest.Recipient); err != nil {
		logger.Error("test digest failed", "type", cfg.Digest.Type, "error", err)
		os.Exit(1)
	}
	logger.Info("test digest sent successfully", "type", cfg.Digest.Type)
	return nil
}
