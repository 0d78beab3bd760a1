package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/audit"
	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/store"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit [run-id]",
	Short: "Browse a run's log interactively (TUI)",
	Long:  "Shows the run picker TUI, then the split-pane view of every posting the run touched. Pass a run id to skip the picker.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditCmd,
}

func init() {
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 30, "number of recent runs offered in the picker")
	rootCmd.AddCommand(auditCmd)
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	// Only startup failures are logged; the TUI owns the terminal after that.
	_, st := mustLoad(setupLogger(debug))
	defer st.Close()

	if len(args) == 1 {
		run, err := st.GetRun(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load run %s: %v\n", args[0], err)
			os.Exit(1)
		}
		if _, err := auditRun(st, run); err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		return nil
	}

	runs, err := st.RecentRuns(context.Background(), auditLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list runs: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	for {
		choice, err := audit.PickRun(runs)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return nil
		}
		if choice < 0 {
			return nil
		}

		wantQuit, err := auditRun(st, runs[choice])
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
		// else: loop → back to picker
	}
}

func auditRun(st *store.SQLiteStore, run model.Run) (bool, error) {
	entries, err := audit.RunLoader("run "+run.ID, func(ctx context.Context) ([]model.RunJobLogEntry, error) {
		return st.RunLog(ctx, run.ID)
	})
	if err != nil {
		return false, fmt.Errorf("load run log: %w", err)
	}
	return audit.RunAuditTUI(run, entries)
}
