package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minki/fundscan/internal/scraper"
)

var (
	discoverAgencyID   string
	discoverWindowDays int
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scrape agency listing sites and queue new announcements",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		registry, err := scraper.LoadRegistry()
		if err != nil {
			return fmt.Errorf("load agency registry: %w", err)
		}
		scraperCfg := cfg.Scraper
		if discoverWindowDays > 0 {
			scraperCfg.WindowDays = discoverWindowDays
		}
		sc := scraper.New(st, registry, scraperCfg, cfg.Storage.AttachmentDir)

		if discoverAgencyID != "" {
			agency, ok := registry.Agency(discoverAgencyID)
			if !ok {
				return fmt.Errorf("unknown agency %q", discoverAgencyID)
			}
			summary, err := sc.DiscoverAgency(ctx, agency)
			if err != nil {
				return err
			}
			zap.S().Infow("discovery complete", "agency", summary.AgencyID,
				"found", summary.Found, "inserted", summary.Inserted, "errors", summary.Errors)
			return nil
		}
		return sc.DiscoverAll(ctx)
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverAgencyID, "agency", "", "discover a single agency by id")
	discoverCmd.Flags().IntVar(&discoverWindowDays, "window-days", 0, "override the configured discovery window")
	rootCmd.AddCommand(discoverCmd)
}
