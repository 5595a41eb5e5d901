// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/mirror"
	"github.com/tomtom215/eodsync/internal/models"
	"github.com/tomtom215/eodsync/internal/sync"
)

var syncFlags struct {
	concurrency int
	batchSize   int
	addMissing  bool
	sequential  bool
	symbols     []string
	asOf        string
	retryFailed bool
	mirror      bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one incremental sync",
	Long: `Fetch the missing daily bars for every stored ticker and upsert them.

Examples:
  # Sync the whole universe with 16 fetch workers
  eodsync sync --concurrency 16

  # Backfill tickers that have no history yet
  eodsync sync --add-missing

  # Retry only the tickers that failed last time, pinned to a date
  eodsync sync --retry-failed --as-of 2024-03-28

  # Sync two tickers without the worker pool
  eodsync sync --symbols AAPL,MSFT --sequential`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.IntVar(&syncFlags.concurrency, "concurrency", 0, "fetch workers (default from config)")
	f.IntVar(&syncFlags.batchSize, "batch-size", 0, "tickers per latest-date snapshot (default from config)")
	f.BoolVar(&syncFlags.addMissing, "add-missing", false, "backfill tickers with no stored rows")
	f.BoolVar(&syncFlags.sequential, "sequential", false, "fetch and write on one goroutine")
	f.StringSliceVar(&syncFlags.symbols, "symbols", nil, "restrict the run to these symbols")
	f.StringVar(&syncFlags.asOf, "as-of", "", "reference end date YYYY-MM-DD (default: latest calendar ticker bar)")
	f.BoolVar(&syncFlags.retryFailed, "retry-failed", false, "restrict the run to tickers in the failure ledger")
	f.BoolVar(&syncFlags.mirror, "mirror", false, "mirror to PostgreSQL after a complete run")

	rootCmd.AddCommand(syncCmd)
}

// applySyncFlags overlays explicitly set flags on the sync config.
func applySyncFlags(cmd *cobra.Command, sc *config.SyncConfig) {
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		sc.Concurrency = syncFlags.concurrency
	}
	if flags.Changed("batch-size") {
		sc.BatchSize = syncFlags.batchSize
	}
	if flags.Changed("add-missing") {
		sc.AddMissing = syncFlags.addMissing
	}
	if flags.Changed("sequential") {
		sc.Sequential = syncFlags.sequential
	}
}

// normalizeSymbols upper-cases, trims and dedupes symbols, keeping order.
func normalizeSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = models.NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// intersect keeps the symbols of a present in b. An empty a means all of b.
func intersect(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	in := make(map[string]struct{}, len(b))
	for _, s := range b {
		in[s] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, s := range a {
		if _, ok := in[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func runSync(cmd *cobra.Command, _ []string) error {
	sc := cfg.Sync
	applySyncFlags(cmd, &sc)

	opts := sync.OptionsFromConfig(&sc)
	if syncFlags.asOf != "" {
		refEnd, err := models.ParseDay(syncFlags.asOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of %q: %w", syncFlags.asOf, err)
		}
		opts.ReferenceEnd = refEnd
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger(led)

	symbols := normalizeSymbols(syncFlags.symbols)
	if syncFlags.retryFailed {
		if led == nil {
			return fmt.Errorf("--retry-failed needs the failure ledger (LEDGER_ENABLED=true)")
		}
		failed, err := led.Symbols(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read failure ledger: %w", err)
		}
		if len(failed) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No failed tickers to retry.")
			return nil
		}
		if symbols = intersect(symbols, failed); len(symbols) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "None of the requested symbols are in the failure ledger.")
			return nil
		}
	}

	engine, err := newEngine(cfg, db, led)
	if err != nil {
		return err
	}

	ctx, cancel := withSignals(cmd.Context(), engine.Shutdown)
	defer cancel()
	ctx = logging.ContextWithNewRunID(ctx)

	tickers, err := db.ListTickers(ctx, models.TickerFilter{
		Symbols:    symbols,
		AssetTypes: sc.AssetTypes,
		Exchanges:  sc.Exchanges,
	})
	if err != nil {
		return fmt.Errorf("failed to list tickers: %w", err)
	}
	if len(tickers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tickers selected; run 'eodsync universe load' first.")
		return nil
	}

	var res *sync.Result
	if sc.Sequential {
		res, err = engine.SyncSequential(ctx, tickers, opts)
	} else {
		res, err = engine.Sync(ctx, tickers, opts)
	}
	if res != nil {
		printSummary(cmd.OutOrStdout(), res.Summary())
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if (syncFlags.mirror || sc.MirrorAfterSync) && !res.Stopped() {
		return mirrorAll(ctx, db)
	}
	return nil
}

func mirrorAll(ctx context.Context, src mirror.Source) error {
	m, err := mirror.New(ctx, &cfg.Mirror, src)
	if err != nil {
		return fmt.Errorf("failed to connect mirror: %w", err)
	}
	defer m.Close()
	if err := m.MirrorAll(ctx); err != nil {
		return fmt.Errorf("mirror failed: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, s models.SyncSummary) {
	fmt.Fprintf(w, "Run %s through %s\n", s.RunID, s.ReferenceEnd)
	fmt.Fprintf(w, "  updated:      %d\n", s.Updated)
	fmt.Fprintf(w, "  no new data:  %d\n", s.NoNewData)
	fmt.Fprintf(w, "  missing:      %d\n", s.Missing)
	fmt.Fprintf(w, "  errors:       %d\n", s.Errors)
	if s.Unprocessed > 0 {
		fmt.Fprintf(w, "  unprocessed:  %d\n", s.Unprocessed)
	}
	fmt.Fprintf(w, "  rows written: %d\n", s.RowsWritten)
	fmt.Fprintf(w, "  duration:     %s\n", s.Duration.Round(time.Millisecond))
	if len(s.ErrorSymbols) > 0 {
		fmt.Fprintf(w, "  failed:       %s\n", strings.Join(s.ErrorSymbols, ", "))
	}
}
