package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and exit",
	Long:  "One-shot manual run over every active search group. Results are persisted and the digest is sent if enabled.",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, st := mustLoad(logger)
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := setupOrchestrator(cfg, st, logger)
	if err != nil {
		logger.Error("failed to set up pipeline", "error", err)
		os.Exit(1)
	}

	run, err := orch.Run(ctx, model.TriggerManual)
	if run.ID != "" {
		printRunSummary(run)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	return nil
}

func printRunSummary(r model.Run) {
	fmt.Printf("\nRun %s  %s  (%s)\n", r.ID, r.Status, time.Duration(r.DurationMs)*time.Millisecond)
	fmt.Printf("  fetched   %d\n", r.Stats.Fetched)
	fmt.Printf("  scored    %d\n", r.Stats.Scored)
	fmt.Printf("  strong    %d\n", r.Stats.Strong)
	fmt.Printf("  weak      %d\n", r.Stats.Weak)
	fmt.Printf("  no match  %d\n", r.Stats.NoMatch)
	fmt.Printf("  duplicate %d\n", r.Stats.Duplicate)
	if r.ErrorLog != "" {
		fmt.Printf("\nErrors:\n%s\n", r.ErrorLog)
	}
}
