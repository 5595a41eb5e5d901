// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package models

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the wire and storage format for trade dates.
const DayLayout = "2006-01-02"

// Ticker is one instrument of the universe.
//
// StartDate and EndDate bound the history the data source has for the symbol.
// A zero EndDate means the instrument is still trading.
type Ticker struct {
	Symbol        string    `json:"symbol" validate:"required,max=32"`
	Exchange      string    `json:"exchange"`
	AssetType     string    `json:"asset_type"`
	PriceCurrency string    `json:"price_currency"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date,omitempty"`
}

// String implements fmt.Stringer.
func (t Ticker) String() string {
	end := "open"
	if !t.EndDate.IsZero() {
		end = FormatDay(t.EndDate)
	}
	return fmt.Sprintf("%s[%s..%s]", t.Symbol, FormatDay(t.StartDate), end)
}

// TickerFilter narrows the ticker list for a sync run.
type TickerFilter struct {
	// Symbols restricts the list to these symbols (empty = all).
	Symbols []string

	// AssetTypes and Exchanges restrict by column value (empty = all).
	AssetTypes []string
	Exchanges  []string

	// ActiveOnly drops tickers whose end date lies before ActiveSince.
	ActiveOnly  bool
	ActiveSince time.Time
}

// NormalizeSymbol upper-cases and trims a symbol as the data source expects it.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextDay returns the calendar day after d.
func NextDay(d time.Time) time.Time {
	return Day(d).AddDate(0, 0, 1)
}

// ParseDay parses a YYYY-MM-DD date. Longer ISO timestamps
// (2023-01-03T00:00:00.000Z) are accepted and truncated to the day.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DayLayout) {
		s = s[:len(DayLayout)]
	}
	d, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatDay renders d as YYYY-MM-DD, or "" for the zero time.
func FormatDay(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(DayLayout)
}
