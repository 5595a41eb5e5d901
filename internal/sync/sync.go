// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"context"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/models"
)

// Sync synchronizes tickers into store from the Tiingo daily endpoint using
// default client settings and apiKey. It returns the updated tickers and the
// missing ones, where missing includes tickers that failed.
func Sync(ctx context.Context, store Store, tickers []models.Ticker, apiKey string, opts Options) (updated, missing SymbolSet, err error) {
	res, err := defaultEngine(store, apiKey).Sync(ctx, tickers, opts)
	return unpack(res, err)
}

// SyncSequential is Sync without the worker pool.
func SyncSequential(ctx context.Context, store Store, tickers []models.Ticker, apiKey string, opts Options) (updated, missing SymbolSet, err error) {
	res, err := defaultEngine(store, apiKey).SyncSequential(ctx, tickers, opts)
	return unpack(res, err)
}

func defaultEngine(store Store, apiKey string) *Engine {
	defaults := config.Defaults()
	tiingo := defaults.Tiingo
	tiingo.APIKey = apiKey

	client := NewTiingoClient(&tiingo)
	return NewEngine(store, client,
		WithReferenceResolver(NewReferenceResolver(client, defaults.Sync.CalendarTicker, defaults.Sync.CalendarLookback)),
	)
}

func unpack(res *Result, err error) (SymbolSet, SymbolSet, error) {
	if res == nil {
		return SymbolSet{}, SymbolSet{}, err
	}
	return res.Updated(), res.Missing(), err
}
