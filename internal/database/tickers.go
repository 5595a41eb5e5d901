// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/eodsync/internal/database/query"
	"github.com/tomtom215/eodsync/internal/metrics"
	"github.com/tomtom215/eodsync/internal/models"
)

const tickerChunkSize = 1000

// ReplaceTickers makes the tickers table equal to the given universe in one
// transaction: new symbols are inserted, existing ones updated, and symbols
// no longer listed are removed. Price history is never touched.
func (db *DB) ReplaceTickers(ctx context.Context, tickers []models.Ticker) (int, error) {
	start := time.Now()

	err := db.withConflictRetry(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `CREATE OR REPLACE TEMP TABLE tickers_stage (
			symbol VARCHAR, exchange VARCHAR, asset_type VARCHAR,
			price_currency VARCHAR, start_date DATE, end_date DATE)`); err != nil {
			return fmt.Errorf("create staging table: %w", err)
		}
		defer func() {
			_, _ = tx.ExecContext(ctx, "DROP TABLE IF EXISTS tickers_stage")
		}()

		for offset := 0; offset < len(tickers); offset += tickerChunkSize {
			end := offset + tickerChunkSize
			if end > len(tickers) {
				end = len(tickers)
			}
			chunk := tickers[offset:end]

			args := make([]interface{}, 0, len(chunk)*6)
			for _, t := range chunk {
				args = append(args, t.Symbol, t.Exchange, t.AssetType, t.PriceCurrency,
					nullDay(t.StartDate), nullDay(t.EndDate))
			}
			q := "INSERT INTO tickers_stage VALUES " + query.ValuesRows(len(chunk), 6)
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("stage tickers %d-%d: %w", offset, end-1, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tickers (symbol, exchange, asset_type, price_currency, start_date, end_date, updated_at)
			SELECT symbol, exchange, asset_type, price_currency, start_date, end_date, current_timestamp
			FROM tickers_stage
			ON CONFLICT (symbol) DO UPDATE SET
				exchange = EXCLUDED.exchange,
				asset_type = EXCLUDED.asset_type,
				price_currency = EXCLUDED.price_currency,
				start_date = EXCLUDED.start_date,
				end_date = EXCLUDED.end_date,
				updated_at = EXCLUDED.updated_at`); err != nil {
			return fmt.Errorf("merge tickers: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tickers WHERE symbol NOT IN (SELECT symbol FROM tickers_stage)`); err != nil {
			return fmt.Errorf("prune tickers: %w", err)
		}
		return nil
	})

	metrics.RecordDBQuery("replace", TableTickers, time.Since(start), err)
	if err != nil {
		return 0, &StorageError{Op: "replace tickers", Err: err}
	}
	return len(tickers), nil
}

// ListTickers returns the tickers matching filter, ordered by symbol.
func (db *DB) ListTickers(ctx context.Context, filter models.TickerFilter) ([]models.Ticker, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	wb := query.NewWhereBuilder().
		AddIn("symbol", filter.Symbols).
		AddIn("asset_type", filter.AssetTypes).
		AddIn("exchange", filter.Exchanges)
	if filter.ActiveOnly {
		wb.AddClause("(end_date IS NULL OR end_date >= ?)", models.Day(filter.ActiveSince))
	}
	where, args := wb.BuildWithPrefix()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT symbol, exchange, asset_type, price_currency, start_date, end_date
		FROM tickers `+where+` ORDER BY symbol`, args...)
	if err != nil {
		metrics.RecordDBQuery("list", TableTickers, time.Since(start), err)
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []models.Ticker
	for rows.Next() {
		var (
			t                    models.Ticker
			exchange, asset, ccy sql.NullString
			startDate, endDate   sql.NullTime
		)
		if err := rows.Scan(&t.Symbol, &exchange, &asset, &ccy, &startDate, &endDate); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		t.Exchange, t.AssetType, t.PriceCurrency = exchange.String, asset.String, ccy.String
		if startDate.Valid {
			t.StartDate = models.Day(startDate.Time)
		}
		if endDate.Valid {
			t.EndDate = models.Day(endDate.Time)
		}
		out = append(out, t)
	}
	err = rows.Err()
	metrics.RecordDBQuery("list", TableTickers, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}
	return out, nil
}

// CountTickers returns the size of the universe.
func (db *DB) CountTickers(ctx context.Context) (int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT count(*) FROM tickers").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tickers: %w", err)
	}
	return n, nil
}

// nullDay maps the zero time to SQL NULL.
func nullDay(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return models.Day(t)
}
