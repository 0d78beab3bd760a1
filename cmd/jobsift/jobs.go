package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/model"
)

var (
	jobsVerdict string
	jobsGroup   string
	jobsCompany string
	jobsSince   time.Duration
	jobsLimit   int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List stored jobs",
	Long:  "Queries the job store. Defaults to strong matches, newest first.",
	RunE:  runJobs,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsVerdict, "verdict", string(model.VerdictStrongMatch), "STRONG_MATCH, WEAK_MATCH, NO_MATCH, or empty for any")
	jobsCmd.Flags().StringVar(&jobsGroup, "group", "", "only jobs from this search group id")
	jobsCmd.Flags().StringVar(&jobsCompany, "company", "", "only jobs from this company (case-insensitive)")
	jobsCmd.Flags().DurationVar(&jobsSince, "since", 0, "only jobs fetched within this long, e.g. 72h")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 50, "maximum number of jobs")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	_, st := mustLoad(logger)
	defer st.Close()

	q := model.JobQuery{
		Verdict: model.Verdict(strings.ToUpper(jobsVerdict)),
		GroupID: jobsGroup,
		Company: jobsCompany,
		Limit:   jobsLimit,
	}
	if q.Verdict != "" && !q.Verdict.Valid() {
		fmt.Fprintf(os.Stderr, "unknown verdict %q\n", jobsVerdict)
		os.Exit(1)
	}
	if jobsSince > 0 {
		q.From = time.Now().Add(-jobsSince)
	}

	jobs, err := st.QueryJobs(context.Background(), q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to query jobs: %v\n", err)
		os.Exit(1)
	}
	if len(jobs) == 0 {
		fmt.Println("No matching jobs.")
		return nil
	}

	for _, j := range jobs {
		flag := ""
		if j.IsDuplicate() {
			flag = " [duplicate]"
		}
		fmt.Printf("%3d  %s · %s%s\n", j.Score, j.Title, j.Company, flag)
		fmt.Printf("     %s · %s · %s\n", j.GroupID, j.Location, j.FetchedAt.Local().Format("2006-01-02 15:04"))
		if j.Summary != nil {
			fmt.Printf("     %s\n", *j.Summary)
		}
		fmt.Printf("     %s\n\n", j.URL)
	}
	fmt.Printf("%d jobs\n", len(jobs))
	return nil
}
