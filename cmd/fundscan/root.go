package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minki/fundscan/internal/config"
	"github.com/minki/fundscan/internal/db"
	"github.com/minki/fundscan/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fundscan",
	Short: "Korean government funding announcement pipeline",
	Long: `fundscan discovers funding announcements on agency listing sites,
extracts structured fields from the attached documents (HWP/HWPX, PDF,
scanned images) and keeps a deduplicated program catalog in Postgres.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore connects the pool and wraps it in the store. Callers own the
// returned pool and must Close it.
func openStore(ctx context.Context) (*pgxpool.Pool, *store.Store, error) {
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	return pool, store.New(pool), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
