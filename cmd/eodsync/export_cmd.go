// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/eodsync/internal/export"
	"github.com/tomtom215/eodsync/internal/models"
)

var exportFlags struct {
	out     string
	upload  bool
	symbols []string
	since   string
	until   string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a parquet snapshot of historical prices",
	Long: `Write historical_prices to a timestamped parquet file and optionally upload
it to S3-compatible object storage.

Examples:
  eodsync export --out /var/lib/eodsync/export
  eodsync export --symbols SPY,QQQ --since 2020-01-01
  S3_ENABLED=true S3_BUCKET=market-data eodsync export --upload`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.out, "out", "", "output directory (default from config)")
	f.BoolVar(&exportFlags.upload, "upload", false, "upload the snapshot to S3")
	f.StringSliceVar(&exportFlags.symbols, "symbols", nil, "export only these symbols")
	f.StringVar(&exportFlags.since, "since", "", "first date to export, YYYY-MM-DD")
	f.StringVar(&exportFlags.until, "until", "", "last date to export, YYYY-MM-DD")

	rootCmd.AddCommand(exportCmd)
}

// parseOptionalDay returns nil for an empty value.
func parseOptionalDay(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := models.ParseDay(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return &d, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	since, err := parseOptionalDay("since", exportFlags.since)
	if err != nil {
		return err
	}
	until, err := parseOptionalDay("until", exportFlags.until)
	if err != nil {
		return err
	}

	ec := cfg.Export
	if exportFlags.out != "" {
		ec.Dir = exportFlags.out
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	ctx, cancel := withSignals(cmd.Context(), nil)
	defer cancel()

	var uploader export.Uploader
	if exportFlags.upload {
		if !ec.S3.Enabled {
			return fmt.Errorf("--upload needs S3 configured (S3_ENABLED=true, S3_BUCKET)")
		}
		s3u, err := export.NewS3Uploader(ctx, &ec.S3)
		if err != nil {
			return err
		}
		uploader = s3u
	}

	res, err := export.NewExporter(&ec, db, uploader).Export(ctx, export.Options{
		Symbols: normalizeSymbols(exportFlags.symbols),
		Since:   since,
		Until:   until,
		Upload:  exportFlags.upload,
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows (%d bytes) to %s\n", res.Rows, res.Bytes, res.Path)
	if res.Key != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded to s3://%s/%s\n", ec.S3.Bucket, res.Key)
	}
	return nil
}
