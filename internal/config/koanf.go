// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/eodsync/config.yaml",
	"/etc/eodsync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvPathEnvVar overrides the .env file path.
const DotEnvPathEnvVar = "EODSYNC_ENV_FILE"

func defaultConfig() *Config {
	return &Config{
		Tiingo: TiingoConfig{
			BaseURL:                 "https://api.tiingo.com",
			Timeout:                 30 * time.Second,
			MaxRetries:              3,
			RetryBaseDelay:          time.Second,
			MaxRetryDelay:           time.Minute,
			RequestsPerSecond:       0,
			CircuitBreaker:          true,
			BreakerFailureThreshold: 20,
			BreakerOpenTimeout:      time.Minute,
			UserAgent:               "eodsync/1.0",
		},
		Database: DatabaseConfig{
			Path:          "data/eodsync.duckdb",
			MaxMemory:     "2GB",
			Threads:       0,
			UpsertMode:    "bulk",
			BulkChunkSize: 500,
		},
		Sync: SyncConfig{
			Concurrency:      8,
			BatchSize:        500,
			AddMissing:       false,
			CalendarTicker:   "SPY",
			CalendarLookback: 14 * 24 * time.Hour,
			Interval:         24 * time.Hour,
			DrainTimeout:     25 * time.Second,
			RunOnStartup:     false,
			MirrorAfterSync:  false,
		},
		Universe: UniverseConfig{
			URL:        "https://apimedia.tiingo.com/docs/tiingo/daily/supported_tickers.zip",
			Timeout:    2 * time.Minute,
			AssetTypes: []string{"Stock", "ETF"},
			Exchanges:  []string{"NYSE", "NASDAQ", "NYSE ARCA", "AMEX", "BATS"},
			Currency:   "USD",
		},
		Mirror: MirrorConfig{
			Enabled:   false,
			Schema:    "public",
			Tables:    []string{"tickers", "historical_prices"},
			ChunkSize: 50000,
			MaxConns:  4,
		},
		Export: ExportConfig{
			Dir:         "data/export",
			Compression: "snappy",
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "eodsync/",
			},
		},
		Ledger: LedgerConfig{
			Enabled:   true,
			Path:      "data/ledger",
			Retention: 30 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8089,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Caller:     false,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Defaults returns the built-in configuration without reading any source.
func Defaults() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting (a .env file is merged into
//     the environment first)
func LoadWithKoanf() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// TIINGO_API_KEY -> tiingo.api_key
	// SYNC_CONCURRENCY -> sync.concurrency
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv merges a .env file into the process environment. Variables
// already set in the environment win. A missing file is not an error.
func loadDotEnv() error {
	path := os.Getenv(DotEnvPathEnvVar)
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"sync.asset_types",
	"sync.exchanges",
	"universe.asset_types",
	"universe.exchanges",
	"mirror.tables",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Data source
	"tiingo_api_key":             "tiingo.api_key",
	"tiingo_base_url":            "tiingo.base_url",
	"tiingo_timeout":             "tiingo.timeout",
	"tiingo_max_retries":         "tiingo.max_retries",
	"tiingo_retry_base_delay":    "tiingo.retry_base_delay",
	"tiingo_max_retry_delay":     "tiingo.max_retry_delay",
	"tiingo_requests_per_second": "tiingo.requests_per_second",
	"tiingo_circuit_breaker":     "tiingo.circuit_breaker",
	"tiingo_breaker_threshold":   "tiingo.breaker_failure_threshold",
	"tiingo_breaker_timeout":     "tiingo.breaker_open_timeout",

	// Database
	"duckdb_path":            "database.path",
	"duckdb_max_memory":      "database.max_memory",
	"duckdb_threads":         "database.threads",
	"duckdb_upsert_mode":     "database.upsert_mode",
	"duckdb_bulk_chunk_size": "database.bulk_chunk_size",

	// Sync
	"sync_concurrency":       "sync.concurrency",
	"sync_batch_size":        "sync.batch_size",
	"sync_add_missing":       "sync.add_missing",
	"sync_sequential":        "sync.sequential",
	"sync_calendar_ticker":   "sync.calendar_ticker",
	"sync_calendar_lookback": "sync.calendar_lookback",
	"sync_interval":          "sync.interval",
	"sync_drain_timeout":     "sync.drain_timeout",
	"sync_run_on_startup":    "sync.run_on_startup",
	"sync_mirror_after_sync": "sync.mirror_after_sync",
	"sync_asset_types":       "sync.asset_types",
	"sync_exchanges":         "sync.exchanges",

	// Universe
	"universe_url":         "universe.url",
	"universe_timeout":     "universe.timeout",
	"universe_asset_types": "universe.asset_types",
	"universe_exchanges":   "universe.exchanges",
	"universe_currency":    "universe.currency",

	// Postgres mirror
	"mirror_enabled":    "mirror.enabled",
	"postgres_dsn":      "mirror.dsn",
	"mirror_schema":     "mirror.schema",
	"mirror_tables":     "mirror.tables",
	"mirror_chunk_size": "mirror.chunk_size",
	"mirror_max_conns":  "mirror.max_conns",

	// Export
	"export_dir":            "export.dir",
	"export_compression":    "export.compression",
	"s3_enabled":            "export.s3.enabled",
	"s3_bucket":             "export.s3.bucket",
	"s3_prefix":             "export.s3.prefix",
	"s3_region":             "export.s3.region",
	"s3_endpoint":           "export.s3.endpoint",
	"s3_path_style":         "export.s3.path_style",
	"aws_access_key_id":     "export.s3.access_key",
	"aws_secret_access_key": "export.s3.secret_key",

	// Failure ledger
	"ledger_enabled":   "ledger.enabled",
	"ledger_path":      "ledger.path",
	"ledger_retention": "ledger.retention",

	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Logging
	"log_level":        "logging.level",
	"log_format":       "logging.format",
	"log_caller":       "logging.caller",
	"log_file":         "logging.file",
	"log_max_size_mb":  "logging.max_size_mb",
	"log_max_backups":  "logging.max_backups",
	"log_max_age_days": "logging.max_age_days",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped so that unrelated environment
// variables never leak into the configuration.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
