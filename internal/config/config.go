// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

// Package config loads EODSync configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. .env file: loaded into the process environment (never overrides real env vars)
//  3. Config File: Optional YAML config file (config.yaml or CONFIG_PATH)
//  4. Environment Variables: Override any setting
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return fmt.Errorf("load config: %w", err)
//	}
//	db, err := database.New(&cfg.Database)
//
// Config is immutable after Load and passed to constructors section by section;
// there is no package-level configuration state.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Tiingo   TiingoConfig   `koanf:"tiingo"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Universe UniverseConfig `koanf:"universe"`
	Mirror   MirrorConfig   `koanf:"mirror"`
	Export   ExportConfig   `koanf:"export"`
	Ledger   LedgerConfig   `koanf:"ledger"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TiingoConfig holds data source settings.
type TiingoConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// APIKey is sent as "Authorization: Token <key>". Never logged.
	APIKey string `koanf:"api_key"`

	// Timeout bounds one HTTP attempt (connect + read).
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// MaxRetries is the number of retries after the first attempt for
	// rate-limit, server-error, and transport failures.
	MaxRetries int `koanf:"max_retries" validate:"min=0,max=20"`

	// RetryBaseDelay is the first backoff interval; it doubles per retry.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay" validate:"gt=0"`

	// MaxRetryDelay caps the exponential backoff. A larger Retry-After from
	// the server is still honored.
	MaxRetryDelay time.Duration `koanf:"max_retry_delay" validate:"gtefield=RetryBaseDelay"`

	// RequestsPerSecond paces outgoing requests (0 = unlimited).
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"min=0"`

	// CircuitBreaker wraps the retried call in a gobreaker circuit breaker.
	CircuitBreaker bool `koanf:"circuit_breaker"`

	// BreakerFailureThreshold consecutive fatal failures trip the breaker.
	BreakerFailureThreshold uint32 `koanf:"breaker_failure_threshold" validate:"min=1"`

	// BreakerOpenTimeout is how long the breaker stays open.
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout" validate:"gt=0"`

	// UserAgent is sent with every request.
	UserAgent string `koanf:"user_agent"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory" validate:"required"`
	Threads   int    `koanf:"threads" validate:"min=0"` // 0 = use NumCPU

	// UpsertMode selects the write path: bulk (chunked multi-row) or row.
	UpsertMode string `koanf:"upsert_mode" validate:"oneof=bulk row"`

	// BulkChunkSize is the number of rows per multi-row INSERT statement.
	BulkChunkSize int `koanf:"bulk_chunk_size" validate:"min=1,max=10000"`
}

// SyncConfig holds incremental sync settings.
type SyncConfig struct {
	// Concurrency is the number of fetch workers per batch.
	Concurrency int `koanf:"concurrency" validate:"min=1,max=256"`

	// BatchSize is the number of tickers sharing one latest-date snapshot.
	BatchSize int `koanf:"batch_size" validate:"min=1"`

	// AddMissing backfills tickers that have no stored rows yet.
	AddMissing bool `koanf:"add_missing"`

	// Sequential runs the single-goroutine variant.
	Sequential bool `koanf:"sequential"`

	// CalendarTicker is the liquid instrument whose latest bar defines
	// the reference end date of a run.
	CalendarTicker string `koanf:"calendar_ticker" validate:"required,symbol"`

	// CalendarLookback is the trailing window fetched for the calendar ticker.
	CalendarLookback time.Duration `koanf:"calendar_lookback" validate:"gt=0"`

	// Interval is the period of the serve-mode scheduler (0 = manual only).
	Interval time.Duration `koanf:"interval" validate:"min=0"`

	// DrainTimeout bounds how long Stop waits for in-flight tickers to
	// finish before their HTTP calls are canceled.
	DrainTimeout time.Duration `koanf:"drain_timeout" validate:"min=0"`

	// RunOnStartup triggers a sync as soon as serve mode starts.
	RunOnStartup bool `koanf:"run_on_startup"`

	// MirrorAfterSync runs the Postgres mirror after each successful run.
	MirrorAfterSync bool `koanf:"mirror_after_sync"`

	// AssetTypes and Exchanges filter the stored ticker list for a run.
	AssetTypes []string `koanf:"asset_types"`
	Exchanges  []string `koanf:"exchanges"`
}

// UniverseConfig holds ticker universe loader settings.
type UniverseConfig struct {
	URL        string        `koanf:"url" validate:"required,url"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	AssetTypes []string      `koanf:"asset_types"`
	Exchanges  []string      `koanf:"exchanges"`
	Currency   string        `koanf:"currency"`
}

// MirrorConfig holds PostgreSQL mirror settings.
type MirrorConfig struct {
	Enabled bool `koanf:"enabled"`

	// DSN is a libpq connection string or URL. Never logged.
	DSN string `koanf:"dsn"`

	Schema    string   `koanf:"schema" validate:"required"`
	Tables    []string `koanf:"tables" validate:"dive,oneof=tickers historical_prices"`
	ChunkSize int      `koanf:"chunk_size" validate:"min=1"`
	MaxConns  int32    `koanf:"max_conns" validate:"min=1"`
}

// ExportConfig holds parquet export and object storage settings.
type ExportConfig struct {
	Dir         string `koanf:"dir" validate:"required"`
	Compression string `koanf:"compression" validate:"oneof=snappy gzip zstd none"`

	S3 S3Config `koanf:"s3"`
}

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Enabled   bool   `koanf:"enabled"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"` // custom endpoint for MinIO and friends
	PathStyle bool   `koanf:"path_style"`
	AccessKey string `koanf:"access_key"` // Never logged.
	SecretKey string `koanf:"secret_key"` // Never logged.
}

// LedgerConfig holds failure ledger settings.
type LedgerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`

	// Retention drops entries not seen for this long (0 = keep forever).
	Retention time.Duration `koanf:"retention" validate:"min=0"`
}

// ServerConfig holds settings for the status API in serve mode.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`

	// Format is the output format: json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes the caller file and line number.
	Caller bool `koanf:"caller"`

	// File enables rotating file output in addition to stderr.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"min=0"`
	MaxBackups int    `koanf:"max_backups" validate:"min=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"min=0"`
}

// Load reads configuration from defaults, .env, an optional config file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
