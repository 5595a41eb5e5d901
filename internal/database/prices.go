// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/eodsync/internal/database/query"
	"github.com/tomtom215/eodsync/internal/metrics"
	"github.com/tomtom215/eodsync/internal/models"
)

// maxConflictRetries bounds retries of a write that lost a DuckDB
// transaction conflict against a concurrent writer (universe loader, API).
const maxConflictRetries = 3

func priceValueColumns() []string {
	return append([]string(nil), models.PriceValueColumns...)
}

var (
	priceInsertColumns = "symbol, date, " + strings.Join(models.PriceValueColumns, ", ")
	priceUpdateSet     = buildUpdateSet(models.PriceValueColumns)
	priceRowWidth      = 2 + len(models.PriceValueColumns)
)

func buildUpdateSet(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = EXCLUDED." + c
	}
	return strings.Join(parts, ", ")
}

// upsertPriceSQL returns the INSERT ... ON CONFLICT statement for rows tuples.
func upsertPriceSQL(rows int) string {
	return "INSERT INTO historical_prices (" + priceInsertColumns + ") VALUES " +
		query.ValuesRows(rows, priceRowWidth) +
		" ON CONFLICT (symbol, date) DO UPDATE SET " + priceUpdateSet
}

// LatestDates returns max(date) per symbol over historical_prices for the
// given symbols. Symbols without rows are absent from the map.
func (db *DB) LatestDates(ctx context.Context, symbols []string) (map[string]time.Time, error) {
	latest := make(map[string]time.Time, len(symbols))
	if len(symbols) == 0 {
		return latest, nil
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	placeholders, args := query.InClause(symbols)
	q := fmt.Sprintf(`SELECT symbol, max(date) FROM historical_prices
		WHERE symbol IN (%s) GROUP BY symbol`, placeholders)

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		metrics.RecordDBQuery("latest_dates", TableHistoricalPrices, time.Since(start), err)
		return nil, fmt.Errorf("failed to query latest dates: %w", err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var symbol string
		var d time.Time
		if err := rows.Scan(&symbol, &d); err != nil {
			return nil, fmt.Errorf("failed to scan latest date: %w", err)
		}
		latest[symbol] = models.Day(d)
	}
	err = rows.Err()
	metrics.RecordDBQuery("latest_dates", TableHistoricalPrices, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("error iterating latest dates: %w", err)
	}

	return latest, nil
}

// UpsertPrices merges records for symbol using the configured write path and
// returns the number of rows written.
func (db *DB) UpsertPrices(ctx context.Context, symbol string, records []models.PriceRecord) (int, error) {
	if db.upsertMode == UpsertModeRow {
		return db.UpsertPricesRowByRow(ctx, symbol, records)
	}
	return db.UpsertPricesBulk(ctx, symbol, records)
}

// UpsertPricesBulk writes all rows of one call in a single transaction using
// multi-row INSERT ... ON CONFLICT statements of bulkChunkSize rows each.
func (db *DB) UpsertPricesBulk(ctx context.Context, symbol string, records []models.PriceRecord) (int, error) {
	rows := normalizeRecords(symbol, records)
	if len(rows) == 0 {
		return 0, nil
	}

	start := time.Now()
	err := db.withConflictRetry(ctx, func(tx *sql.Tx) error {
		stmts := make(map[int]*sql.Stmt, 2)
		defer func() {
			for _, stmt := range stmts {
				closeQuietly(stmt)
			}
		}()

		for offset := 0; offset < len(rows); offset += db.bulkChunkSize {
			end := offset + db.bulkChunkSize
			if end > len(rows) {
				end = len(rows)
			}
			chunk := rows[offset:end]

			stmt, ok := stmts[len(chunk)]
			if !ok {
				var err error
				stmt, err = tx.PrepareContext(ctx, upsertPriceSQL(len(chunk)))
				if err != nil {
					return fmt.Errorf("prepare bulk upsert: %w", err)
				}
				stmts[len(chunk)] = stmt
			}

			args := make([]interface{}, 0, len(chunk)*priceRowWidth)
			for _, r := range chunk {
				args = append(args, r.Symbol, r.Date)
				args = append(args, r.Values()...)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("bulk upsert rows %d-%d: %w", offset, end-1, err)
			}
		}
		return nil
	})

	metrics.RecordUpsert(UpsertModeBulk, len(rows), time.Since(start), err)
	if err != nil {
		return 0, &StorageError{Op: "bulk upsert", Symbol: symbol, Err: err}
	}
	return len(rows), nil
}

// UpsertPricesRowByRow writes rows one statement at a time inside a single
// transaction. Slower than the bulk path; errors point at the exact row.
func (db *DB) UpsertPricesRowByRow(ctx context.Context, symbol string, records []models.PriceRecord) (int, error) {
	rows := normalizeRecords(symbol, records)
	if len(rows) == 0 {
		return 0, nil
	}

	start := time.Now()
	err := db.withConflictRetry(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertPriceSQL(1))
		if err != nil {
			return fmt.Errorf("prepare row upsert: %w", err)
		}
		defer closeQuietly(stmt)

		for _, r := range rows {
			args := append([]interface{}{r.Symbol, r.Date}, r.Values()...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("row upsert %s: %w", models.FormatDay(r.Date), err)
			}
		}
		return nil
	})

	metrics.RecordUpsert(UpsertModeRow, len(rows), time.Since(start), err)
	if err != nil {
		return 0, &StorageError{Op: "row upsert", Symbol: symbol, Err: err}
	}
	return len(rows), nil
}

// withConflictRetry runs fn in a transaction, committing on success and
// rolling back on any error. Transaction conflicts are retried with a short
// backoff; anything else is returned immediately.
func (db *DB) withConflictRetry(ctx context.Context, fn func(*sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		lastErr = db.inTx(ctx, fn)
		if lastErr == nil || !isTransactionConflict(lastErr) {
			return lastErr
		}

		backoff := time.Millisecond * time.Duration(1<<uint(attempt)) // 1ms, 2ms, 4ms
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		rollbackQuietly(tx)
		return err
	}
	if err := tx.Commit(); err != nil {
		rollbackQuietly(tx)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// normalizeRecords applies the default table and collapses duplicate dates,
// keeping the last record for each date. Input order is otherwise kept.
//
// ON CONFLICT DO UPDATE cannot touch the same key twice in one statement,
// so this also keeps the bulk path valid.
func normalizeRecords(symbol string, records []models.PriceRecord) []models.PriceRow {
	if len(records) == 0 {
		return nil
	}

	index := make(map[time.Time]int, len(records))
	rows := make([]models.PriceRow, 0, len(records))
	for _, rec := range records {
		row := rec.Normalize(symbol)
		if i, ok := index[row.Date]; ok {
			rows[i] = row
			continue
		}
		index[row.Date] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

// PriceFilter selects rows for GetPrices and ScanPrices.
type PriceFilter struct {
	Symbols []string
	Since   *time.Time
	Until   *time.Time
}

func (f PriceFilter) where() (string, []interface{}) {
	wb := query.NewWhereBuilder().
		AddIn("symbol", f.Symbols).
		AddDateRange("date", f.Since, f.Until)
	return wb.BuildWithPrefix()
}

// ScanPrices streams historical_prices rows matching filter, ordered by
// symbol and date, to fn. Returning an error from fn stops the scan.
func (db *DB) ScanPrices(ctx context.Context, filter PriceFilter, fn func(models.PriceRow) error) error {
	where, args := filter.where()
	q := "SELECT " + priceInsertColumns + " FROM historical_prices " + where + " ORDER BY symbol, date"

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to query prices: %w", err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var r models.PriceRow
		var (
			closeV, high, low, open       sql.NullFloat64
			adjClose, adjHigh, adjLow     sql.NullFloat64
			adjOpen, divCash, splitFactor sql.NullFloat64
			volume, adjVolume             sql.NullInt64
		)
		if err := rows.Scan(&r.Symbol, &r.Date,
			&closeV, &high, &low, &open, &volume,
			&adjClose, &adjHigh, &adjLow, &adjOpen, &adjVolume,
			&divCash, &splitFactor); err != nil {
			return fmt.Errorf("failed to scan price: %w", err)
		}
		r.Date = models.Day(r.Date)
		r.Close, r.High, r.Low, r.Open = closeV.Float64, high.Float64, low.Float64, open.Float64
		r.AdjClose, r.AdjHigh, r.AdjLow, r.AdjOpen = adjClose.Float64, adjHigh.Float64, adjLow.Float64, adjOpen.Float64
		r.Volume, r.AdjVolume = volume.Int64, adjVolume.Int64
		r.DivCash, r.SplitFactor = divCash.Float64, splitFactor.Float64

		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating prices: %w", err)
	}
	return nil
}

// GetPrices returns the stored rows for symbol ordered by date.
func (db *DB) GetPrices(ctx context.Context, symbol string) ([]models.PriceRow, error) {
	var out []models.PriceRow
	err := db.ScanPrices(ctx, PriceFilter{Symbols: []string{symbol}}, func(r models.PriceRow) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// CountPrices returns the number of stored rows, optionally for one symbol.
func (db *DB) CountPrices(ctx context.Context, symbol string) (int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var n int64
	var err error
	if symbol == "" {
		err = db.conn.QueryRowContext(ctx, "SELECT count(*) FROM historical_prices").Scan(&n)
	} else {
		err = db.conn.QueryRowContext(ctx, "SELECT count(*) FROM historical_prices WHERE symbol = ?", symbol).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return n, nil
}
