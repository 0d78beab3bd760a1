package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	Long:  "Prints a table of the most recent pipeline runs from the run ledger.",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	_, st := mustLoad(logger)
	defer st.Close()

	runs, err := st.RecentRuns(context.Background(), runsLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list runs: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-36s  %-16s  %-9s  %-13s %7s %6s %6s %6s %5s\n",
		"Run", "Ran at", "Trigger", "Status", "Fetched", "Scored", "Strong", "Weak", "Dup")
	fmt.Println(strings.Repeat("─", 116))
	for _, r := range runs {
		fmt.Printf("%-36s  %-16s  %-9s  %-13s %7d %6d %6d %6d %5d\n",
			r.ID, r.RanAt.Local().Format("2006-01-02 15:04"), r.Trigger, r.Status,
			r.Stats.Fetched, r.Stats.Scored, r.Stats.Strong, r.Stats.Weak, r.Stats.Duplicate)
	}
	return nil
}
