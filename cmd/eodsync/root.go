// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
)

var (
	configPath string
	logLevel   string

	// cfg is populated by the root PersistentPreRunE before any RunE.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "eodsync",
	Short: "Incremental end-of-day market data synchronization",
	Long: `eodsync keeps a local DuckDB store of daily OHLCV bars current against
the Tiingo end-of-day API.

Each run reads the latest stored date per ticker, fetches only the missing
days up to the most recent trading day, and upserts them through a single
writer. Results can be mirrored to PostgreSQL or exported as parquet.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (overrides CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, configPath); err != nil {
			return fmt.Errorf("failed to set %s: %w", config.ConfigPathEnvVar, err)
		}
	}

	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}

	logging.Init(logging.Config{
		Level:      loaded.Logging.Level,
		Format:     loaded.Logging.Format,
		Caller:     loaded.Logging.Caller,
		Timestamp:  true,
		File:       loaded.Logging.File,
		MaxSizeMB:  loaded.Logging.MaxSizeMB,
		MaxBackups: loaded.Logging.MaxBackups,
		MaxAgeDays: loaded.Logging.MaxAgeDays,
		Output:     os.Stderr,
	})

	cfg = loaded
	return nil
}
