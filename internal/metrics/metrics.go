// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

// Package metrics exposes Prometheus collectors for EODSync.
//
// Collectors are registered on the default registry through promauto and
// served by the status API at /metrics. Instrumented packages call the
// Record* helpers rather than touching collectors directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fetch Metrics
	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eodsync_fetch_requests_total",
			Help: "Data source fetches by result (ok, no_data, transient, fatal)",
		},
		[]string{"result"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eodsync_fetch_duration_seconds",
			Help:    "Duration of one logical fetch including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	FetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eodsync_fetch_retries_total",
			Help: "HTTP attempts retried, by reason (rate_limited, server_error, transport)",
		},
		[]string{"reason"},
	)

	FetchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eodsync_fetch_in_flight",
			Help: "Fetches currently in flight",
		},
	)

	// Storage Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	RowsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eodsync_rows_upserted_total",
			Help: "Rows written to historical_prices, by upsert mode",
		},
		[]string{"mode"},
	)

	// Sync Metrics
	SyncOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eodsync_sync_outcomes_total",
			Help: "Per-ticker sync outcomes by kind",
		},
		[]string{"outcome"},
	)

	SyncBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eodsync_sync_batch_duration_seconds",
			Help:    "Duration of one sync batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eodsync_sync_duration_seconds",
			Help:    "Duration of a full sync run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eodsync_sync_runs_total",
			Help: "Sync runs by status (ok, failed, stopped)",
		},
		[]string{"status"},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eodsync_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sync run",
		},
	)

	SyncWriteLaneDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eodsync_sync_write_lane_depth",
			Help: "Fetched tickers waiting for the single writer",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Downstream Metrics
	MirrorRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eodsync_mirror_rows_total",
			Help: "Rows copied to PostgreSQL by table",
		},
		[]string{"table"},
	)

	MirrorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eodsync_mirror_duration_seconds",
			Help:    "Duration of one table mirror",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"table"},
	)

	ExportRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eodsync_export_rows_total",
			Help: "Rows written to parquet snapshots",
		},
	)

	LedgerEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eodsync_ledger_entries",
			Help: "Tickers currently recorded in the failure ledger",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordFetch records one logical fetch and its result label.
func RecordFetch(result string, duration time.Duration) {
	FetchRequests.WithLabelValues(result).Inc()
	FetchDuration.Observe(duration.Seconds())
}

// RecordFetchRetry records one retried HTTP attempt.
func RecordFetchRetry(reason string) {
	FetchRetries.WithLabelValues(reason).Inc()
}

// TrackFetchInFlight increments or decrements the in-flight gauge.
func TrackFetchInFlight(inc bool) {
	if inc {
		FetchInFlight.Inc()
	} else {
		FetchInFlight.Dec()
	}
}

// RecordUpsert records one upsert call.
func RecordUpsert(mode string, rows int, duration time.Duration, err error) {
	RecordDBQuery("upsert_"+mode, "historical_prices", duration, err)
	if err == nil {
		RowsUpserted.WithLabelValues(mode).Add(float64(rows))
	}
}

// RecordOutcome records one per-ticker outcome.
func RecordOutcome(outcome string) {
	SyncOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSyncRun records a finished sync run. status is ok, failed or stopped.
func RecordSyncRun(status string, duration time.Duration) {
	SyncDuration.Observe(duration.Seconds())
	SyncRuns.WithLabelValues(status).Inc()
	if status == "ok" {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordMirror records one mirrored table.
func RecordMirror(table string, rows int64, duration time.Duration) {
	MirrorRows.WithLabelValues(table).Add(float64(rows))
	MirrorDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
