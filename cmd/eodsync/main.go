// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

// Package main is the eodsync command line.
//
// EODSync keeps a DuckDB store of daily prices current against the Tiingo
// end-of-day API. Each run fetches only the days a ticker is missing, with a
// bounded pool of fetch workers feeding one database writer.
//
// # Commands
//
//	eodsync universe load [--file PATH]   refresh the ticker universe
//	eodsync sync [flags]                  run one incremental sync
//	eodsync mirror [tables...]            copy DuckDB tables to PostgreSQL
//	eodsync export [--upload]             write a parquet snapshot
//	eodsync failures                      list tickers that keep failing
//	eodsync serve                         scheduler plus status API
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (TIINGO_API_KEY, DUCKDB_PATH, SYNC_CONCURRENCY, ...)
//   - Config file (config.yaml, or --config / CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The first SIGINT or SIGTERM stops a sync gracefully: in-flight tickers are
// fetched and written, the remaining ones are reported unprocessed. A second
// signal aborts immediately.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
