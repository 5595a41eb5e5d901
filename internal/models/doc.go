// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
Package models defines the data structures shared by the EODSync packages.

Key Components:

  - Ticker: reference data for one instrument, loaded from the supported
    tickers universe and never mutated by the sync engine
  - PriceRecord: one daily bar as fetched from the data source, with every
    value optional so that "absent" stays explicit
  - PriceRow: the fully populated storage row produced by PriceRecord.Normalize
  - APIResponse: the envelope used by the status API

Dates:

All trade dates are calendar days in UTC. Use Day to truncate a timestamp and
ParseDay/FormatDay for the YYYY-MM-DD wire format:

	d, err := models.ParseDay("2023-06-01")
	next := models.NextDay(d)

Missing values:

PriceRecord.Normalize applies the default substitution table in one place:

	price fields (close, high, low, open and adjusted variants)  NaN
	volume, adjusted volume                                      0
	dividend cash                                                0.0
	split factor                                                 1.0

Nothing else in the codebase substitutes defaults.
*/
package models
