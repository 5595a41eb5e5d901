// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/eodsync/internal/ledger"
)

var failuresJSON bool

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List tickers in the failure ledger",
	Long: `List tickers whose last sync attempt errored. Entries are cleared when a
ticker later syncs successfully. Retry them with 'eodsync sync --retry-failed'.`,
	Args: cobra.NoArgs,
	RunE: runFailures,
}

func init() {
	failuresCmd.Flags().BoolVar(&failuresJSON, "json", false, "print entries as JSON")
	rootCmd.AddCommand(failuresCmd)
}

func runFailures(cmd *cobra.Command, _ []string) error {
	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if led == nil {
		return fmt.Errorf("failure ledger is disabled (LEDGER_ENABLED=false)")
	}
	defer closeLedger(led)

	entries, err := led.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list failures: %w", err)
	}

	if failuresJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	return printFailures(cmd.OutOrStdout(), entries)
}

func printFailures(w io.Writer, entries []ledger.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No failed tickers.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tKIND\tSTATUS\tATTEMPTS\tLAST SEEN\tMESSAGE")
	for _, e := range entries {
		status := "-"
		if e.StatusCode != 0 {
			status = fmt.Sprint(e.StatusCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.Symbol, e.Kind, status, e.Attempts, e.LastSeen.UTC().Format(time.RFC3339), e.Message)
	}
	return tw.Flush()
}
