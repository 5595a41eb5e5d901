// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

// Package export writes historical price snapshots as parquet files and
// optionally uploads them to S3-compatible object storage.
//
// A snapshot is a single file named historical_prices_<UTC timestamp>.parquet
// under export.dir, sorted by symbol and date. Dates are stored as the
// parquet DATE logical type; all value columns are required because stored
// rows are fully populated.
package export
