// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package database

import (
	"context"
	"fmt"
	"strings"
)

// Table names.
const (
	TableTickers          = "tickers"
	TableHistoricalPrices = "historical_prices"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tickers (
		symbol         VARCHAR PRIMARY KEY,
		exchange       VARCHAR,
		asset_type     VARCHAR,
		price_currency VARCHAR,
		start_date     DATE,
		end_date       DATE,
		updated_at     TIMESTAMP DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS historical_prices (
		symbol       VARCHAR NOT NULL,
		date         DATE NOT NULL,
		close        DOUBLE,
		high         DOUBLE,
		low          DOUBLE,
		open         DOUBLE,
		volume       BIGINT,
		adj_close    DOUBLE,
		adj_high     DOUBLE,
		adj_low      DOUBLE,
		adj_open     DOUBLE,
		adj_volume   BIGINT,
		div_cash     DOUBLE,
		split_factor DOUBLE,
		PRIMARY KEY (symbol, date)
	)`,
}

// createTables creates the schema if it does not exist.
func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// TableColumns returns the ordered column list of a known table.
func TableColumns(table string) ([]string, bool) {
	switch table {
	case TableTickers:
		return []string{"symbol", "exchange", "asset_type", "price_currency", "start_date", "end_date", "updated_at"}, true
	case TableHistoricalPrices:
		return append([]string{"symbol", "date"}, priceValueColumns()...), true
	default:
		return nil, false
	}
}

// KnownTables lists the tables the store owns, in load order.
func KnownTables() []string {
	return []string{TableTickers, TableHistoricalPrices}
}

// ScanTable streams every row of a known table to fn, in TableColumns order.
// Values are the driver's native types (string, time.Time, float64, int64 or
// nil). The slice passed to fn is reused between calls.
func (db *DB) ScanTable(ctx context.Context, table string, fn func([]interface{}) error) error {
	cols, ok := TableColumns(table)
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}

	rows, err := db.conn.QueryContext(ctx, "SELECT "+strings.Join(cols, ", ")+" FROM "+table)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer closeWithLog(rows, "rows")

	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}
		if err := fn(values); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating %s: %w", table, err)
	}
	return nil
}
