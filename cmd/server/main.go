package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/afroash/holdtrack/internal/config"
	"github.com/afroash/holdtrack/internal/storage"
)

const version = "v0.3.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "holdtrack-server",
	Short:   "Holdtrack - device hold timelines and measurement aggregation",
	Version: version,
	Long: `Holdtrack tracks which label holds each device over time and serves
aggregated sensor measurements for the periods a device was held.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/server.yaml", "path to config file")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore returns the store selected by the database driver
func openStore(ctx context.Context, cfg config.DatabaseSettings, logger zerolog.Logger) (storage.Store, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn().Msg("Using in-memory store, data is lost on exit")
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Driver, err)
	}
	return store, nil
}
