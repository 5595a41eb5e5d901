// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

//go:build integration

package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/database"
	"github.com/tomtom215/eodsync/internal/models"
	"github.com/tomtom215/eodsync/internal/testinfra"
)

func TestMirrorAll_Postgres(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, pg)

	db, err := database.New(&config.DatabaseConfig{
		Path: ":memory:", MaxMemory: "1GB", UpsertMode: database.UpsertModeBulk, BulkChunkSize: 100,
	})
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	defer db.Close()

	start, _ := models.ParseDay("2023-06-01")
	if _, err := db.ReplaceTickers(ctx, []models.Ticker{
		{Symbol: "AAPL", Exchange: "NASDAQ", AssetType: "Stock", PriceCurrency: "USD", StartDate: start},
		{Symbol: "MSFT", Exchange: "NASDAQ", AssetType: "Stock", PriceCurrency: "USD", StartDate: start},
	}); err != nil {
		t.Fatalf("ReplaceTickers: %v", err)
	}
	var recs []models.PriceRecord
	for i := 0; i < 5; i++ {
		recs = append(recs, models.PriceRecord{Date: start.AddDate(0, 0, i), Close: models.Float64(100 + float64(i))})
	}
	if _, err := db.UpsertPrices(ctx, "AAPL", recs); err != nil {
		t.Fatalf("UpsertPrices: %v", err)
	}

	cfg := &config.MirrorConfig{
		DSN:       pg.DSN,
		Schema:    "market",
		Tables:    database.KnownTables(),
		ChunkSize: 2,
		MaxConns:  2,
	}
	m, err := New(ctx, cfg, db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	// Twice: the second load must replace, not append.
	for i := 0; i < 2; i++ {
		if err := m.MirrorAll(ctx); err != nil {
			t.Fatalf("MirrorAll #%d: %v", i+1, err)
		}
	}

	var tickers, prices int
	if err := m.pool.QueryRow(ctx, "SELECT count(*) FROM market.tickers").Scan(&tickers); err != nil {
		t.Fatalf("count tickers: %v", err)
	}
	if err := m.pool.QueryRow(ctx, "SELECT count(*) FROM market.historical_prices").Scan(&prices); err != nil {
		t.Fatalf("count prices: %v", err)
	}
	if tickers != 2 || prices != 5 {
		t.Errorf("mirrored tickers=%d prices=%d, want 2 and 5", tickers, prices)
	}

	var lastClose float64
	var lastDate time.Time
	if err := m.pool.QueryRow(ctx,
		"SELECT date, close FROM market.historical_prices WHERE symbol = 'AAPL' ORDER BY date DESC LIMIT 1").
		Scan(&lastDate, &lastClose); err != nil {
		t.Fatalf("query last row: %v", err)
	}
	if models.FormatDay(lastDate) != "2023-06-05" || lastClose != 104 {
		t.Errorf("last row = %s %.2f", models.FormatDay(lastDate), lastClose)
	}
}
