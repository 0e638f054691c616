// Package main is the lens command: a standalone runner for the
// embedded telemetry engine and its dashboard API.
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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/getlens/lens/internal/api"
	"github.com/getlens/lens/internal/config"
	"github.com/getlens/lens/internal/engine"
	"github.com/getlens/lens/internal/retention"
	"github.com/getlens/lens/internal/storage/sqlite"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:          "lens",
		Short:        "Embedded developer telemetry store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file")

	root.AddCommand(serveCmd())
	root.AddCommand(purgeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from the configured level.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the telemetry engine and dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel)

			eng, err := engine.New(cfg, nil, log)
			if err != nil {
				return err
			}
			defer eng.Stop()

			server := api.NewServer(cfg.Server.Addr, cfg.BasePath, eng, log.With().Str("component", "api").Logger())

			eng.Start()

			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("server shutdown")
			}
			return nil
		},
	}
}

func purgeCmd() *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete telemetry older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel)

			days := cfg.RetentionDays
			if olderThanDays > 0 {
				days = olderThanDays
			}

			store, err := sqlite.Open(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			reaper := retention.New(store, days, log.With().Str("component", "retention").Logger())
			if err := reaper.RunOnce(cmd.Context()); err != nil {
				return fmt.Errorf("purging telemetry: %w", err)
			}

			log.Info().Int("older_than_days", days).Msg("purge complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "override retention window in days")

	return cmd
}
