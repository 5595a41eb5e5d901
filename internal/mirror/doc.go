// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

// Package mirror copies DuckDB tables into PostgreSQL.
//
// Each table is replaced wholesale inside one PostgreSQL transaction:
// TRUNCATE followed by COPY FROM in chunks streamed out of DuckDB. Readers
// of the mirror see either the previous snapshot or the new one, never a
// partial load.
//
// Only the tables the store owns (tickers, historical_prices) can be
// mirrored; their PostgreSQL DDL is fixed and created on first use.
//
// Example:
//
//	m, err := mirror.New(ctx, &cfg.Mirror, db)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//	if err := m.MirrorAll(ctx); err != nil {
//	    return err
//	}
package mirror
