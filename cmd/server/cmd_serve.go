package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/afroash/holdtrack/internal/catalog"
	"github.com/afroash/holdtrack/internal/config"
	"github.com/afroash/holdtrack/internal/logging"
	"github.com/afroash/holdtrack/internal/measurements"
	"github.com/afroash/holdtrack/internal/server"
	"github.com/afroash/holdtrack/internal/service"
	"github.com/afroash/holdtrack/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and hold event stream",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAppConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging, "server")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logCloser.Close()

	logger.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting Holdtrack server")

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var cat catalog.Catalog
	if cfg.Catalog.Path != "" {
		fileCatalog, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		logger.Info().Str("path", cfg.Catalog.Path).Int("labels", fileCatalog.Len()).Msg("Catalog loaded")
		cat = fileCatalog
	} else {
		cat = catalog.NewSeededCatalog(cfg.Catalog.SeedCount)
		logger.Info().Int("labels", cfg.Catalog.SeedCount).Msg("Using seeded catalog")
	}

	source := measurements.NewSyntheticSource(cfg.Measurements.Step, cfg.Measurements.Seed)
	metrics := server.NewMetrics()
	hub := server.NewHub(
		cfg.Server.StreamToken,
		server.NewEventHistory(cfg.Server.StreamHistory),
		metrics,
		logger,
		cfg.Server.AllowedOrigins...,
	)
	defer hub.Close()

	svc := service.New(store, cat, source, logger, service.WithPublisher(hub))

	var cleanerStats server.CleanerStatsProvider
	if cfg.Cleanup.Enabled {
		cleaner := storage.NewOrphanCleaner(store, storage.OrphanCleanerConfig{CleanupPeriod: cfg.Cleanup.Period}, logger)
		defer cleaner.Stop()
		cleanerStats = cleaner
		logger.Info().Dur("period", cfg.Cleanup.Period).Msg("Orphan hold cleaner started")
	}

	router := server.NewRouter(server.RouterConfig{
		API:     server.NewAPIHandler(svc, store, cleanerStats, hub, logger),
		Hub:     hub,
		Metrics: metrics,
		Version: version,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}

	logger.Info().Msg("Server stopped")
	return nil
}
