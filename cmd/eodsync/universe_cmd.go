// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/eodsync/internal/universe"
)

var universeFile string

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Manage the ticker universe",
}

var universeLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Replace the stored ticker universe",
	Long: `Download Tiingo's supported tickers archive (or read a local copy), filter
it by asset type, exchange and currency, and replace the tickers table.

Price history of tickers that drop out of the universe is kept.

Examples:
  eodsync universe load
  eodsync universe load --file supported_tickers.csv`,
	Args: cobra.NoArgs,
	RunE: runUniverseLoad,
}

func init() {
	universeLoadCmd.Flags().StringVar(&universeFile, "file", "", "read a local .zip or .csv instead of downloading")

	universeCmd.AddCommand(universeLoadCmd)
	rootCmd.AddCommand(universeCmd)
}

func runUniverseLoad(cmd *cobra.Command, _ []string) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	ctx, cancel := withSignals(cmd.Context(), nil)
	defer cancel()

	loader := universe.NewLoader(&cfg.Universe, db)
	var stats *universe.LoadStats
	if universeFile != "" {
		stats, err = loader.LoadFile(ctx, universeFile)
	} else {
		stats, err = loader.Load(ctx)
	}
	if err != nil {
		return fmt.Errorf("universe load failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d tickers from %d rows (%d filtered, %d invalid, %d without history, %d duplicates)\n",
		stats.Loaded, stats.Rows, stats.Filtered, stats.Invalid, stats.NoHistory, stats.Duplicates)
	return nil
}
