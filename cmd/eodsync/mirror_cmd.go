// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/eodsync/internal/mirror"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror [tables...]",
	Short: "Copy DuckDB tables to PostgreSQL",
	Long: `Replace the PostgreSQL copy of each table with the DuckDB contents in one
transaction per table. Without arguments the configured tables are mirrored.

Examples:
  POSTGRES_DSN=postgres://eod@db/eod eodsync mirror
  eodsync mirror historical_prices`,
	RunE: runMirror,
}

func init() {
	rootCmd.AddCommand(mirrorCmd)
}

func runMirror(cmd *cobra.Command, args []string) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	ctx, cancel := withSignals(cmd.Context(), nil)
	defer cancel()

	if len(args) == 0 {
		return mirrorAll(ctx, db)
	}

	m, err := mirror.New(ctx, &cfg.Mirror, db)
	if err != nil {
		return fmt.Errorf("failed to connect mirror: %w", err)
	}
	defer m.Close()

	for _, table := range args {
		n, err := m.LoadTable(ctx, table)
		if err != nil {
			return fmt.Errorf("mirror %s failed: %w", table, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", table, n)
	}
	return nil
}
