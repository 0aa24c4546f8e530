package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minki/fundscan/internal/extract"
	"github.com/minki/fundscan/internal/pipeline"
	"github.com/minki/fundscan/internal/store"
)

var (
	processFrom    string
	processTo      string
	processAgency  string
	processJobID   string
	processWorkers int
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Drain the pending job queue through the extraction pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		filter, err := buildJobFilter()
		if err != nil {
			return err
		}

		// Jobs abandoned by crashed workers go back to PENDING before the
		// pool starts claiming.
		reclaimed, err := st.ReclaimStale(ctx, time.Duration(cfg.Worker.LeaseSecs)*time.Second)
		if err != nil {
			return fmt.Errorf("reclaim stale jobs: %w", err)
		}
		if reclaimed > 0 {
			zap.S().Infow("reclaimed stale jobs", "count", reclaimed)
		}

		workerCfg := cfg.Worker
		if processWorkers > 0 {
			workerCfg.Count = processWorkers
		}
		p := pipeline.New(st, newExtractionEngine(), workerCfg)
		stats, err := p.Run(ctx, filter)
		if err != nil {
			return err
		}
		zap.S().Infow("processing complete", "claimed", stats.Claimed,
			"completed", stats.Completed, "failed", stats.Failed, "skipped", stats.Skipped)
		return nil
	},
}

func buildJobFilter() (store.JobFilter, error) {
	var filter store.JobFilter
	filter.AgencyID = processAgency

	parseDay := func(s string) (*time.Time, error) {
		if s == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("bad date %q, want YYYY-MM-DD: %w", s, err)
		}
		return &t, nil
	}

	var err error
	if filter.From, err = parseDay(processFrom); err != nil {
		return filter, err
	}
	if filter.To, err = parseDay(processTo); err != nil {
		return filter, err
	}
	if processJobID != "" {
		id, err := uuid.Parse(processJobID)
		if err != nil {
			return filter, fmt.Errorf("bad job id %q: %w", processJobID, err)
		}
		filter.JobID = &id
	}
	return filter, nil
}

// newExtractionEngine assembles the backend chain in fallback order: stored
// listing bodies pass straight through, then native document parsers, the
// cloud editor conversion, OCR last.
func newExtractionEngine() *extract.Engine {
	timeout := time.Duration(cfg.Extract.TimeoutSecs) * time.Second
	return extract.NewEngine(
		extract.NewPlainTextBackend(),
		extract.NewHWPBackend(),
		extract.NewPDFBackend(),
		extract.NewCloudEditorBackend(cfg.Extract.CloudEditorURL, cfg.Extract.CloudEditorKey, timeout),
		extract.NewTesseractOCR(cfg.Extract.OCRBinPath, cfg.Extract.OCRLanguages),
	)
}

func init() {
	processCmd.Flags().StringVar(&processFrom, "from", "", "only jobs discovered on/after this date (YYYY-MM-DD)")
	processCmd.Flags().StringVar(&processTo, "to", "", "only jobs discovered on/before this date (YYYY-MM-DD)")
	processCmd.Flags().StringVar(&processAgency, "agency", "", "only jobs from this agency id")
	processCmd.Flags().StringVar(&processJobID, "job", "", "process a single job by id")
	processCmd.Flags().IntVar(&processWorkers, "workers", 0, "override the configured worker count")
	rootCmd.AddCommand(processCmd)
}
