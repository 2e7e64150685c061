package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cuemby/minicluster/pkg/storage"
	"github.com/cuemby/minicluster/pkg/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs recorded in the ledger",
	Long: `List the connections the worker has handled, oldest first.

The ledger is locked while a worker is serving, so run this against a
stopped worker's data directory.`,
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().IntP("limit", "n", 20, "Show only the most recent N jobs (0 = all)")
	jobsCmd.Flags().String("status", "", "Only show jobs with this status (running, succeeded, failed, ignored)")

	rootCmd.AddCommand(jobsCmd)
}

func statusColor(status types.JobStatus) *color.Color {
	switch status {
	case types.JobStatusSucceeded:
		return color.New(color.FgGreen)
	case types.JobStatusFailed:
		return color.New(color.FgRed)
	case types.JobStatusRunning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Faint)
	}
}

// filterJobs keeps jobs matching status (all when empty), then the last limit
func filterJobs(jobs []*types.JobRecord, status string, limit int) []*types.JobRecord {
	var out []*types.JobRecord
	for _, j := range jobs {
		if status == "" || string(j.Status) == status {
			out = append(out, j)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func runJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := storage.OpenReadOnly(cfg.LedgerPath())
	if err != nil {
		return err
	}
	defer store.Close()

	all, err := store.ListJobs()
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	jobs := filterJobs(all, status, limit)

	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tREMOTE\tSIGNAL\tOPS\tFILES\tROWS\tDURATION\tSTATUS\tERROR")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			j.ID,
			j.StartedAt.Local().Format(time.DateTime),
			j.Remote,
			j.Signal,
			j.Ops,
			j.Files,
			j.Rows,
			j.Duration().Round(time.Millisecond),
			statusColor(j.Status).Sprint(j.Status),
			j.Error,
		)
	}
	return tw.Flush()
}
