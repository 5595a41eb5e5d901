// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package universe

import (
	"time"
)

// Row is one raw line of the supported-tickers CSV.
type Row struct {
	Line          int    `json:"-"`
	Ticker        string `json:"ticker" validate:"required,symbol"`
	Exchange      string `json:"exchange"`
	AssetType     string `json:"assetType"`
	PriceCurrency string `json:"priceCurrency"`
	StartDate     string `json:"startDate" validate:"omitempty,day"`
	EndDate       string `json:"endDate" validate:"omitempty,day"`
}

// LoadStats holds statistics about a universe load.
type LoadStats struct {
	// Rows is the number of data rows read from the CSV.
	Rows int

	// Loaded is the number of tickers written to the store.
	Loaded int

	// Invalid rows failed validation.
	Invalid int

	// Filtered rows did not match the asset type, exchange or currency filter.
	Filtered int

	// NoHistory rows had no start date.
	NoHistory int

	// Duplicates were collapsed into an earlier row of the same symbol.
	Duplicates int

	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the duration of the load.
func (s *LoadStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Skipped returns the number of rows that did not become tickers.
func (s *LoadStats) Skipped() int {
	return s.Invalid + s.Filtered + s.NoHistory + s.Duplicates
}
