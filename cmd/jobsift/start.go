package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/scheduler"
	"github.com/amishk599/jobsift/internal/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler daemon",
	Long:  "Start the cron scheduler and, if enabled, the manual trigger HTTP API; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, st := mustLoad(logger)
	defer st.Close()

	active := 0
	for _, g := range cfg.Groups {
		if g.Active {
			active++
		}
	}
	logger.Info("config loaded",
		"schedule", cfg.Schedule.Cron,
		"groups", len(cfg.Groups),
		"active_groups", active,
		"ai_provider", cfg.AI.Provider,
		"digest", cfg.Digest.Enabled,
		"server", cfg.Server.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := setupOrchestrator(cfg, st, logger)
	if err != nil {
		logger.Error("failed to set up pipeline", "error", err)
		os.Exit(1)
	}

	sched, err := scheduler.NewScheduler(cfg.Schedule.Cron, orch, cfg.Schedule.RunOnStart, logger)
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		os.Exit(1)
	}

	srvErr := make(chan error, 1)
	if cfg.Server.Enabled {
		srv := server.New(orch, st, logger)
		go func() {
			srvErr <- srv.ListenAndServe(ctx, cfg.Server.Addr)
			// A dead API takes the scheduler down with it.
			stop()
		}()
	} else {
		srvErr <- nil
	}

	err = errors.Join(sched.Run(ctx), <-srvErr)
	// A run in flight gets its ledger row finalized before the store closes.
	orch.Wait()
	if err != nil {
		logger.Error("daemon stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
