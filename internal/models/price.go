// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package models

import (
	"math"
	"time"
)

// PriceRecord is one daily bar as returned by the data source.
// Any value may be absent; nil means the source did not send it.
type PriceRecord struct {
	Symbol string
	Date   time.Time

	Close  *float64
	High   *float64
	Low    *float64
	Open   *float64
	Volume *int64

	AdjClose  *float64
	AdjHigh   *float64
	AdjLow    *float64
	AdjOpen   *float64
	AdjVolume *int64

	DivCash     *float64
	SplitFactor *float64
}

// PriceRow is a fully populated row of historical_prices.
type PriceRow struct {
	Symbol string
	Date   time.Time

	Close  float64
	High   float64
	Low    float64
	Open   float64
	Volume int64

	AdjClose  float64
	AdjHigh   float64
	AdjLow    float64
	AdjOpen   float64
	AdjVolume int64

	DivCash     float64
	SplitFactor float64
}

// Defaults substituted for absent values.
const (
	DefaultVolume      int64   = 0
	DefaultDivCash     float64 = 0.0
	DefaultSplitFactor float64 = 1.0
)

// DefaultPrice is substituted for absent price fields.
func DefaultPrice() float64 { return math.NaN() }

// Normalize fills absent values from the default table and returns the
// storage row. symbol overrides r.Symbol when non-empty.
func (r PriceRecord) Normalize(symbol string) PriceRow {
	if symbol == "" {
		symbol = r.Symbol
	}
	return PriceRow{
		Symbol:      symbol,
		Date:        Day(r.Date),
		Close:       priceOrDefault(r.Close),
		High:        priceOrDefault(r.High),
		Low:         priceOrDefault(r.Low),
		Open:        priceOrDefault(r.Open),
		Volume:      intOrDefault(r.Volume, DefaultVolume),
		AdjClose:    priceOrDefault(r.AdjClose),
		AdjHigh:     priceOrDefault(r.AdjHigh),
		AdjLow:      priceOrDefault(r.AdjLow),
		AdjOpen:     priceOrDefault(r.AdjOpen),
		AdjVolume:   intOrDefault(r.AdjVolume, DefaultVolume),
		DivCash:     floatOrDefault(r.DivCash, DefaultDivCash),
		SplitFactor: floatOrDefault(r.SplitFactor, DefaultSplitFactor),
	}
}

// Values returns the value columns in historical_prices column order.
func (p PriceRow) Values() []interface{} {
	return []interface{}{
		p.Close, p.High, p.Low, p.Open, p.Volume,
		p.AdjClose, p.AdjHigh, p.AdjLow, p.AdjOpen, p.AdjVolume,
		p.DivCash, p.SplitFactor,
	}
}

// PriceValueColumns lists the value columns of historical_prices, in the
// order used by PriceRow.Values.
var PriceValueColumns = []string{
	"close", "high", "low", "open", "volume",
	"adj_close", "adj_high", "adj_low", "adj_open", "adj_volume",
	"div_cash", "split_factor",
}

func priceOrDefault(v *float64) float64 {
	if v == nil {
		return DefaultPrice()
	}
	return *v
}

func floatOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOrDefault(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}

// Float64 returns a pointer to v, for building records in code and tests.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
