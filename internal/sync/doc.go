// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
Package sync is the incremental end-of-day synchronization engine.

For every ticker it decides which date range is missing from the store,
fetches that range from the data source with bounded concurrency and
retry/backoff, and merges the result into DuckDB through an idempotent
upsert. Every ticker ends a run classified as updated, no new data,
missing (added or skipped) or errored.

Key Components:

  - TiingoClient: HTTP client for the daily prices endpoint; classifies
    responses into ErrNoData, transient and fatal FetchErrors
  - CircuitBreakerFetcher: optional gobreaker wrapper around any Fetcher
  - RangeFor / ReferenceResolver: the delta calculator and the reference
    end date taken from a liquid calendar ticker
  - Engine: batches, fetch workers, the single writer, and the sequential
    variant sharing the same planning and settling code
  - Result: disjoint outcome sets plus counts for reporting
  - Manager: periodic runs, manual triggers and status for serve mode

Pipeline:

	tickers -> batch -> LatestDates (one query)
	        -> RangeFor per ticker -> job channel
	        -> K fetch workers -> write lane (bounded)
	        -> single writer -> UpsertPrices -> Result

Batches run strictly one after another. Within a batch there is no ordering
across tickers; a given ticker is fetched and written at most once.

Usage Example:

	client := sync.NewTiingoClient(&cfg.Tiingo)
	engine := sync.NewEngine(db, client,
	    sync.WithReferenceResolver(sync.NewReferenceResolver(client, cfg.Sync.CalendarTicker, cfg.Sync.CalendarLookback)),
	)
	res, err := engine.Sync(ctx, tickers, sync.OptionsFromConfig(&cfg.Sync))
	if err != nil {
	    return err
	}
	logging.Info().Int("updated", res.Updated().Len()).Msg("done")
*/
package sync
