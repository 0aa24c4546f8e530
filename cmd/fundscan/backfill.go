package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minki/fundscan/internal/enrich"
)

var backfillOpts enrich.Options

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run the semantic enrichment backfill over stored programs",
	Long: `backfill classifies programs that lack semantic fields, rate limited
against the model endpoint. Progress is checkpointed after every record;
--resume continues an interrupted run, retrying only the records that
failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		cls := enrich.NewClassifier(cfg.Enrich)
		b := enrich.NewBackfill(st, cls, cfg.Enrich, cfg.Storage.CheckpointDir, cfg.Storage.RunLogDir)

		report, err := b.Run(ctx, backfillOpts)
		if report != nil {
			zap.S().Infow("backfill finished",
				"targets", report.Targets, "already_processed", report.AlreadyProcessed,
				"enriched", report.Enriched, "skipped", report.Skipped, "failed", report.Failed)
		}
		return err
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillOpts.Limit, "limit", 0, "cap the number of programs to enrich (0 = no cap)")
	backfillCmd.Flags().StringVar(&backfillOpts.Category, "category", "", "only programs tagged with this category")
	backfillCmd.Flags().BoolVar(&backfillOpts.Resume, "resume", false, "continue from the last checkpoint")
	backfillCmd.Flags().BoolVar(&backfillOpts.Force, "force", false, "re-enrich programs that already have semantic fields")
	backfillCmd.Flags().BoolVar(&backfillOpts.DryRun, "dry-run", false, "list targets without calling the model")
	rootCmd.AddCommand(backfillCmd)
}
