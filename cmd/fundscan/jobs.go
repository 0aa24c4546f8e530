package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minki/fundscan/internal/models"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and repair the job queue",
}

var requeueCmd = &cobra.Command{
	Use:   "requeue [job-id]",
	Short: "Return failed jobs to the queue",
	Long: `With a job id, requeue that job; without one, requeue every FAILED
job that has attempts left.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if len(args) == 1 {
			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("bad job id %q: %w", args[0], err)
			}
			if err := st.RequeueJob(ctx, jobID, cfg.Worker.MaxAttempts); err != nil {
				return err
			}
			zap.S().Infow("job requeued", "job_id", jobID)
			return nil
		}

		n, err := st.RequeueFailed(ctx, cfg.Worker.MaxAttempts)
		if err != nil {
			return err
		}
		zap.S().Infow("failed jobs requeued", "count", n)
		return nil
	},
}

var reclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Return jobs with expired worker leases to the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := st.ReclaimStale(ctx, time.Duration(cfg.Worker.LeaseSecs)*time.Second)
		if err != nil {
			return err
		}
		zap.S().Infow("stale jobs reclaimed", "count", n)
		return nil
	},
}

var resetAllConfirm bool

var resetAllCmd = &cobra.Command{
	Use:   "reset-all",
	Short: "Reset every FAILED job to PENDING, ignoring the attempt ceiling",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetAllConfirm {
			return fmt.Errorf("reset-all rewrites job state; rerun with --confirm")
		}
		ctx := cmd.Context()
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		before, err := st.QueueStats(ctx)
		if err != nil {
			return err
		}
		n, err := st.ResetAllFailed(ctx)
		if err != nil {
			return err
		}
		after, err := st.QueueStats(ctx)
		if err != nil {
			return err
		}
		zap.S().Infow("failed jobs reset", "reset", n,
			"failed_before", before[models.ProcessingFailed],
			"pending_after", after[models.ProcessingPending])
		return nil
	},
}

func init() {
	resetAllCmd.Flags().BoolVar(&resetAllConfirm, "confirm", false, "actually perform the reset")
	jobsCmd.AddCommand(requeueCmd)
	jobsCmd.AddCommand(reclaimCmd)
	jobsCmd.AddCommand(resetAllCmd)
	rootCmd.AddCommand(jobsCmd)
}
