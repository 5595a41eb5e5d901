// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
Package ledger keeps a durable record of tickers that failed to sync.

Each errored ticker gets one BadgerDB entry keyed by symbol. A later
failure updates the entry (attempt count, last run, last cause); a later
success removes it. Entries not seen again within the retention window
expire through BadgerDB's native TTL.

The ledger drives the remediation path: "eodsync failures" lists the
entries and "eodsync sync --retry-failed" restricts a run to them.

# Wiring

Observer adapts a Ledger to sync.Observer so the engine reports outcomes
without knowing about storage:

	l, err := ledger.Open(&cfg.Ledger)
	if err != nil {
	    return err
	}
	defer l.Close()

	engine := sync.NewEngine(db, fetcher, sync.WithObserver(
	    sync.MultiObserver{sync.LogObserver{}, ledger.NewObserver(l)},
	))

# Thread Safety

Ledger methods are safe for concurrent use.
*/
package ledger
