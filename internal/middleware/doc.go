// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
Package middleware provides HTTP middleware for the status API.

Key Components:

  - Request ID: UUID-based request tracking, propagated into log lines
  - Prometheus Metrics: request count and latency per route pattern

Both are chi-compatible (func(http.Handler) http.Handler):

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

Metrics are labelled with the chi route pattern rather than the raw path so
that label cardinality stays bounded.
*/
package middleware
