// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/database"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/metrics"
)

// ErrUnknownTable is returned for tables the mirror has no DDL for.
var ErrUnknownTable = errors.New("unknown table")

// ErrNoDSN is returned when the mirror is used without a connection string.
var ErrNoDSN = errors.New("mirror DSN is not configured")

// Source streams rows of a DuckDB table.
type Source interface {
	ScanTable(ctx context.Context, table string, fn func([]interface{}) error) error
}

var tableDDL = map[string]string{
	database.TableTickers: `(
		symbol         TEXT PRIMARY KEY,
		exchange       TEXT,
		asset_type     TEXT,
		price_currency TEXT,
		start_date     DATE,
		end_date       DATE,
		updated_at     TIMESTAMP
	)`,
	database.TableHistoricalPrices: `(
		symbol       TEXT NOT NULL,
		date         DATE NOT NULL,
		close        DOUBLE PRECISION,
		high         DOUBLE PRECISION,
		low          DOUBLE PRECISION,
		open         DOUBLE PRECISION,
		volume       BIGINT,
		adj_close    DOUBLE PRECISION,
		adj_high     DOUBLE PRECISION,
		adj_low      DOUBLE PRECISION,
		adj_open     DOUBLE PRECISION,
		adj_volume   BIGINT,
		div_cash     DOUBLE PRECISION,
		split_factor DOUBLE PRECISION,
		PRIMARY KEY (symbol, date)
	)`,
}

// Mirror loads DuckDB tables into PostgreSQL.
type Mirror struct {
	cfg  *config.MirrorConfig
	pool *pgxpool.Pool
	src  Source
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, cfg *config.MirrorConfig, src Source) (*Mirror, error) {
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse mirror DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Mirror{cfg: cfg, pool: pool, src: src}, nil
}

// Close releases the connection pool.
func (m *Mirror) Close() {
	m.pool.Close()
}

// MirrorAll loads every configured table, stopping at the first failure.
func (m *Mirror) MirrorAll(ctx context.Context) error {
	for _, table := range m.cfg.Tables {
		if _, err := m.LoadTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

// LoadTable replaces the PostgreSQL copy of table with the current DuckDB
// contents and returns the number of rows copied.
func (m *Mirror) LoadTable(ctx context.Context, table string) (int64, error) {
	cols, ok := database.TableColumns(table)
	ddl, hasDDL := tableDDL[table]
	if !ok || !hasDDL {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	start := time.Now()
	ident := pgx.Identifier{m.cfg.Schema, table}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin mirror transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{m.cfg.Schema}.Sanitize()); err != nil {
		return 0, fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+ident.Sanitize()+" "+ddl); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}
	if _, err := tx.Exec(ctx, "TRUNCATE "+ident.Sanitize()); err != nil {
		return 0, fmt.Errorf("truncate %s: %w", table, err)
	}

	rows, err := copyChunks(ctx, m.src, table, len(cols), m.cfg.ChunkSize, func(chunk [][]interface{}) error {
		_, err := tx.CopyFrom(ctx, ident, cols, pgx.CopyFromRows(chunk))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("copy %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit mirror of %s: %w", table, err)
	}

	elapsed := time.Since(start)
	metrics.RecordMirror(table, rows, elapsed)
	logging.Ctx(ctx).Info().
		Str("table", table).
		Str("schema", m.cfg.Schema).
		Int64("rows", rows).
		Dur("duration", elapsed).
		Msg("Table mirrored to postgres")
	return rows, nil
}

// copyChunks streams table from src and hands it to flush in chunks of at
// most size rows. Rows are copied because the source reuses its buffer.
func copyChunks(ctx context.Context, src Source, table string, width, size int, flush func([][]interface{}) error) (int64, error) {
	if size < 1 {
		size = 1
	}

	var total int64
	chunk := make([][]interface{}, 0, size)
	err := src.ScanTable(ctx, table, func(values []interface{}) error {
		row := make([]interface{}, width)
		copy(row, values)
		chunk = append(chunk, row)
		if len(chunk) < size {
			return nil
		}
		if err := flush(chunk); err != nil {
			return err
		}
		total += int64(len(chunk))
		chunk = make([][]interface{}, 0, size)
		return nil
	})
	if err != nil {
		return total, err
	}

	if len(chunk) > 0 {
		if err := flush(chunk); err != nil {
			return total, err
		}
		total += int64(len(chunk))
	}
	return total, nil
}
