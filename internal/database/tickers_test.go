// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/tomtom215/eodsync/internal/models"
)

func testTickers(t *testing.T) []models.Ticker {
	t.Helper()
	return []models.Ticker{
		{Symbol: "AAPL", Exchange: "NASDAQ", AssetType: "Stock", PriceCurrency: "USD",
			StartDate: mustDay(t, "1980-12-12"), EndDate: mustDay(t, "2024-06-28")},
		{Symbol: "SPY", Exchange: "NYSE ARCA", AssetType: "ETF", PriceCurrency: "USD",
			StartDate: mustDay(t, "1993-01-29")},
		{Symbol: "DEAD", Exchange: "NYSE", AssetType: "Stock", PriceCurrency: "USD",
			StartDate: mustDay(t, "2001-01-02"), EndDate: mustDay(t, "2010-03-31")},
	}
}

func TestReplaceTickers_InsertAndList(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n, err := db.ReplaceTickers(ctx, testTickers(t))
	checkNoError(t, err)
	checkIntEqual(t, "replaced", n, 3)

	got, err := db.ListTickers(ctx, models.TickerFilter{})
	checkNoError(t, err)
	checkIntEqual(t, "listed", len(got), 3)

	// Ordered by symbol.
	checkStringEqual(t, "first", got[0].Symbol, "AAPL")
	checkStringEqual(t, "last", got[2].Symbol, "SPY")

	checkStringEqual(t, "exchange", got[0].Exchange, "NASDAQ")
	checkDayEqual(t, "start date", got[0].StartDate, mustDay(t, "1980-12-12"))
	if !got[2].EndDate.IsZero() {
		t.Errorf("missing end date should stay zero, got %s", models.FormatDay(got[2].EndDate))
	}
}

func TestReplaceTickers_PrunesAndUpdates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.ReplaceTickers(ctx, testTickers(t))
	checkNoError(t, err)

	// Price history for a pruned ticker must survive.
	_, err = db.UpsertPrices(ctx, "DEAD", recordSpecs{{"2010-03-31", 4.2}}.records())
	checkNoError(t, err)

	next := []models.Ticker{
		{Symbol: "AAPL", Exchange: "NASDAQ", AssetType: "Stock", PriceCurrency: "USD",
			StartDate: mustDay(t, "1980-12-12"), EndDate: mustDay(t, "2024-07-01")},
		{Symbol: "MSFT", Exchange: "NASDAQ", AssetType: "Stock", PriceCurrency: "USD"},
	}
	_, err = db.ReplaceTickers(ctx, next)
	checkNoError(t, err)

	got, err := db.ListTickers(ctx, models.TickerFilter{})
	checkNoError(t, err)
	checkIntEqual(t, "listed", len(got), 2)
	checkStringEqual(t, "first", got[0].Symbol, "AAPL")
	checkStringEqual(t, "second", got[1].Symbol, "MSFT")
	checkDayEqual(t, "updated end date", got[0].EndDate, mustDay(t, "2024-07-01"))

	count, err := db.CountTickers(ctx)
	checkNoError(t, err)
	checkInt64Equal(t, "count", count, 2)

	prices, err := db.CountPrices(ctx, "DEAD")
	checkNoError(t, err)
	checkInt64Equal(t, "history of pruned ticker", prices, 1)
}

func TestReplaceTickers_EmptyClearsUniverse(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.ReplaceTickers(ctx, testTickers(t))
	checkNoError(t, err)

	n, err := db.ReplaceTickers(ctx, nil)
	checkNoError(t, err)
	checkIntEqual(t, "replaced", n, 0)

	count, err := db.CountTickers(ctx)
	checkNoError(t, err)
	checkInt64Equal(t, "count", count, 0)
}

func TestReplaceTickers_ManyChunks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tickers := make([]models.Ticker, 0, 2*tickerChunkSize+7)
	for i := 0; i < cap(tickers); i++ {
		tickers = append(tickers, models.Ticker{Symbol: fmt.Sprintf("T%05d", i), AssetType: "Stock"})
	}

	_, err := db.ReplaceTickers(ctx, tickers)
	checkNoError(t, err)

	count, err := db.CountTickers(ctx)
	checkNoError(t, err)
	checkInt64Equal(t, "count", count, int64(len(tickers)))
}

func TestListTickers_Filters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.ReplaceTickers(ctx, testTickers(t))
	checkNoError(t, err)

	tests := []struct {
		name   string
		filter models.TickerFilter
		want   []string
	}{
		{"symbols", models.TickerFilter{Symbols: []string{"SPY", "NOPE"}}, []string{"SPY"}},
		{"asset types", models.TickerFilter{AssetTypes: []string{"Stock"}}, []string{"AAPL", "DEAD"}},
		{"exchanges", models.TickerFilter{Exchanges: []string{"NASDAQ", "NYSE ARCA"}}, []string{"AAPL", "SPY"}},
		{"active since", models.TickerFilter{ActiveOnly: true, ActiveSince: mustDay(t, "2024-01-01")}, []string{"AAPL", "SPY"}},
		{"active and stock", models.TickerFilter{
			AssetTypes: []string{"Stock"}, ActiveOnly: true, ActiveSince: mustDay(t, "2024-07-01"),
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListTickers(ctx, tt.filter)
			checkNoError(t, err)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i, sym := range tt.want {
				checkStringEqual(t, "symbol", got[i].Symbol, sym)
			}
		})
	}
}

func TestScanTable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.ReplaceTickers(ctx, testTickers(t))
	checkNoError(t, err)

	var symbols []string
	err = db.ScanTable(ctx, TableTickers, func(values []interface{}) error {
		cols, _ := TableColumns(TableTickers)
		checkIntEqual(t, "width", len(values), len(cols))
		symbols = append(symbols, fmt.Sprint(values[0]))
		return nil
	})
	checkNoError(t, err)
	checkIntEqual(t, "rows", len(symbols), 3)

	stop := fmt.Errorf("stop")
	calls := 0
	err = db.ScanTable(ctx, TableTickers, func([]interface{}) error {
		calls++
		return stop
	})
	if err != stop {
		t.Errorf("callback error not returned, got %v", err)
	}
	checkIntEqual(t, "calls", calls, 1)

	if err := db.ScanTable(ctx, "users", func([]interface{}) error { return nil }); err == nil {
		t.Error("expected error for unknown table")
	}
}
