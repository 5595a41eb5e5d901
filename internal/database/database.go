// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
Package database is the DuckDB-backed store for tickers and daily prices.

Tables:

  - tickers: the universe, primary key (symbol), replaced wholesale by the
    universe loader
  - historical_prices: one row per (symbol, date); written only through
    UpsertPrices, never deleted by the sync engine

The per-symbol "latest stored date" is not persisted; LatestDates derives it
with one aggregate query per sync batch.

Writes:

UpsertPrices runs in one transaction per call and is all-or-nothing. Two
interchangeable paths exist, selected by database.upsert_mode:

	bulk  chunked multi-row INSERT ... ON CONFLICT DO UPDATE (default)
	row   one prepared statement executed per record

Both collapse duplicate dates in the input (last record wins) before writing
and produce identical table contents for identical input.
*/
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
)

// Upsert modes.
const (
	UpsertModeBulk = "bulk"
	UpsertModeRow  = "row"
)

const defaultBulkChunkSize = 500

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	upsertMode    string
	bulkChunkSize int
}

// New opens (or creates) the DuckDB database and initializes the schema.
// Any failure here is returned wrapped in ErrConnection.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
	if cfg.Path != ":memory:" {
		if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("%w: failed to create database directory %s: %w", ErrConnection, dbDir, err)
			}
		}
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Auto-install/auto-load stay off; the schema needs no extensions.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrConnection, err)
	}

	db := &DB{
		conn:          conn,
		cfg:           cfg,
		upsertMode:    cfg.UpsertMode,
		bulkChunkSize: cfg.BulkChunkSize,
	}
	if db.upsertMode == "" {
		db.upsertMode = UpsertModeBulk
	}
	if db.bulkChunkSize <= 0 {
		db.bulkChunkSize = defaultBulkChunkSize
	}

	db.configureConnectionPool()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("%w: failed to connect: %w", ErrConnection, err)
	}

	if err := db.createTables(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("%w: failed to initialize schema: %w", ErrConnection, err)
	}

	logging.Debug().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("upsert_mode", db.upsertMode).
		Msg("DuckDB opened")

	return db, nil
}

// configureConnectionPool sets connection pool parameters.
// The sync engine writes from a single goroutine; the pool serves readers
// (status API, export, mirror) running alongside it.
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn returns the underlying SQL database handle.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// UpsertMode returns the configured write path.
func (db *DB) UpsertMode() string {
	return db.upsertMode
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return errors.New("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Checkpoint forces a WAL checkpoint.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Close checkpoints and closes the database.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	// Flush the WAL so the next open does not need to replay it.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	cancel()

	err := db.conn.Close()
	db.conn = nil
	return err
}

// ensureContext applies a 30s default timeout to contexts without a deadline.
func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}
	return ctx, func() {}
}
