package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/afroash/holdtrack/internal/client"
	"github.com/afroash/holdtrack/internal/config"
	"github.com/afroash/holdtrack/internal/logging"
	"github.com/afroash/holdtrack/internal/models"
)

const version = "v0.3.0"

const (
	bufferSize    = 256
	drainInterval = 250 * time.Millisecond
	drainBatch    = 64
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "holdtrack-watcher",
	Short:        "Print hold lifecycle events from a Holdtrack server",
	Version:      version,
	SilenceUsage: true,
	RunE:         runWatch,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "configs/watcher.yaml", "path to config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWatcherConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging, "watcher")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logCloser.Close()

	info := models.NewWatcherInfo(cfg.Watcher.ID, version)
	logger.Info().Str("watcher_id", info.ID).Str("url", cfg.Stream.URL).Msg("Starting watcher")

	buffer := client.NewEventBuffer(bufferSize, true)
	conn := client.NewConnection(client.ConnectionConfig{
		URL:                  cfg.Stream.URL,
		AuthToken:            cfg.Stream.AuthToken,
		ConnectTimeout:       cfg.Stream.ConnectTimeout,
		ReconnectInterval:    cfg.Stream.ReconnectInterval,
		MaxReconnectInterval: cfg.Stream.MaxReconnectInterval,
		PingInterval:         cfg.Stream.PingInterval,
		PongTimeout:          cfg.Stream.PongTimeout,
	}, info, buffer, nil, logger)

	ctx := cmd.Context()
	done := make(chan struct{})
	go func() {
		defer close(done)
		drain(ctx, buffer, cmd.OutOrStdout(), logger)
	}()

	err = conn.Run(ctx)
	conn.Close()
	<-done

	stats := buffer.Stats()
	logger.Info().
		Int64("received", conn.Received()).
		Int64("dropped", stats.TotalDropped).
		Msg("Watcher stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// drain writes buffered events as JSON lines until ctx is done
func drain(ctx context.Context, buffer *client.EventBuffer, out io.Writer, logger zerolog.Logger) {
	enc := json.NewEncoder(out)
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	flush := func() {
		for _, event := range buffer.PopBatch(drainBatch) {
			if err := enc.Encode(event); err != nil {
				logger.Error().Err(err).Msg("Failed to write event")
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		}
	}
}
