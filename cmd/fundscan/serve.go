package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/minki/fundscan/internal/api"
	"github.com/minki/fundscan/internal/pipeline"
	"github.com/minki/fundscan/internal/scraper"
	"github.com/minki/fundscan/internal/store"
)

// pipelineProcessor adapts the worker pool to the API's trigger interface,
// which only cares whether the run errored.
type pipelineProcessor struct {
	p *pipeline.Pipeline
}

func (pp pipelineProcessor) Run(ctx context.Context, filter store.JobFilter) error {
	_, err := pp.p.Run(ctx, filter)
	return err
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ops API, with the daily discovery scheduler when enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		registry, err := scraper.LoadRegistry()
		if err != nil {
			return err
		}
		sc := scraper.New(st, registry, cfg.Scraper, cfg.Storage.AttachmentDir)
		p := pipeline.New(st, newExtractionEngine(), cfg.Worker)
		srv := api.NewServer(st, sc, pipelineProcessor{p}, cfg.Server, cfg.Worker.MaxAttempts)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.S().Infow("ops api listening", "port", cfg.Server.Port)
			return srv.Start(ctx)
		})
		if cfg.Scraper.SchedulerRole {
			sched := scraper.NewScheduler(sc, pool, cfg.Scraper.ScheduleHour)
			g.Go(func() error {
				return sched.Run(ctx)
			})
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
