package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/afroash/holdtrack/internal/config"
	"github.com/afroash/holdtrack/internal/logging"
	"github.com/afroash/holdtrack/internal/migrate"
)

var eventsPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import accounts, devices and holds from a JSONL event log",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&eventsPath, "events", "events.jsonl", "path to the JSONL event log")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAppConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, logCloser, err := logging.New(cfg.Logging, "import")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logCloser.Close()

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(eventsPath)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	events, err := migrate.ReadEvents(f, logger)
	if err != nil {
		return err
	}
	logger.Info().
		Int("accounts", len(events.Accounts)).
		Int("devices", len(events.Devices)).
		Int("skipped", events.Skipped).
		Msg("Event log parsed")

	report, err := migrate.NewImporter(store, logger).Import(ctx, events)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
