package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/minki/fundscan/internal/models"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print queue and extraction quality diagnostics",
}

var reportQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Job counts per processing status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		stats, err := st.QueueStats(ctx)
		if err != nil {
			return err
		}

		statuses := []models.ProcessingStatus{
			models.ProcessingPending, models.ProcessingInProgress,
			models.ProcessingCompleted, models.ProcessingFailed, models.ProcessingSkipped,
		}
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Status", "Jobs"})
		for _, status := range statuses {
			t.AppendRow(table.Row{string(status), stats[status]})
		}
		t.Render()
		return nil
	},
}

var reportSkipsCmd = &cobra.Command{
	Use:   "skips",
	Short: "Skipped job counts per reason",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		reasons, err := st.SkipReasons(ctx)
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(reasons))
		for k := range reasons {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Reason", "Jobs"})
		for _, k := range keys {
			t.AppendRow(table.Row{k, reasons[k]})
		}
		t.Render()
		return nil
	},
}

var reportFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Population rates of the structured fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		rates, err := st.FieldPopulationRates(ctx)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Field", "Populated", "Total", "Rate"})
		for _, r := range rates {
			rate := "n/a"
			if r.Total > 0 {
				rate = fmt.Sprintf("%.1f%%", 100*float64(r.Populated)/float64(r.Total))
			}
			t.AppendRow(table.Row{r.Field, r.Populated, r.Total, rate})
		}
		t.Render()
		return nil
	},
}

var reportRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Recent discovery runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		runs, err := st.RecentRuns(ctx, 20)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Agency", "Status", "Found", "Inserted", "Errors", "Duration", "Started At"})
		for _, run := range runs {
			duration := "running"
			if run.CompletedAt != nil {
				duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
			}
			t.AppendRow(table.Row{run.AgencyID, run.Status, run.ItemsFound,
				run.ItemsInserted, run.Errors, duration, run.StartedAt.Format("2006-01-02 15:04:05")})
		}
		t.Render()
		return nil
	},
}

func init() {
	reportCmd.AddCommand(reportQueueCmd)
	reportCmd.AddCommand(reportSkipsCmd)
	reportCmd.AddCommand(reportFieldsCmd)
	reportCmd.AddCommand(reportRunsCmd)
	rootCmd.AddCommand(reportCmd)
}
