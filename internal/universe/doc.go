// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

// Package universe loads the ticker universe from the data source's
// supported-tickers archive.
//
// # Pipeline
//
//	supported_tickers.zip (HTTP or local file)
//	       ↓
//	Reader: first CSV member, header-mapped rows
//	       ↓
//	Mapper: validation, asset type / exchange / currency filters
//	       ↓
//	Store.ReplaceTickers (one transaction, wholesale refresh)
//
// # CSV Format
//
// The archive holds a single CSV with the header
//
//	ticker,exchange,assetType,priceCurrency,startDate,endDate
//
// Columns are located by header name, so extra or reordered columns are
// tolerated. Dates use YYYY-MM-DD. Rows without a start date have no price
// history at the source and are skipped.
//
// # Duplicates
//
// A symbol listed more than once (relisted on another exchange) keeps the
// row with the latest end date; an open-ended row beats any dated one.
package universe
