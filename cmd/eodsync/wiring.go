// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/database"
	"github.com/tomtom215/eodsync/internal/ledger"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/sync"
)

func openDB(c *config.Config) (*database.DB, error) {
	db, err := database.New(&c.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", c.Database.Path, err)
	}
	return db, nil
}

func closeDB(db *database.DB) {
	if err := db.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing database")
	}
}

// openLedger returns nil when the ledger is disabled.
func openLedger(c *config.Config) (*ledger.Ledger, error) {
	if !c.Ledger.Enabled {
		return nil, nil
	}
	l, err := ledger.Open(&c.Ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure ledger %s: %w", c.Ledger.Path, err)
	}
	return l, nil
}

func closeLedger(l *ledger.Ledger) {
	if l == nil {
		return
	}
	if err := l.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing failure ledger")
	}
}

// newFetcher builds the Tiingo client, behind a circuit breaker when enabled.
func newFetcher(c *config.Config) (sync.Fetcher, error) {
	if err := c.RequireAPIKey(); err != nil {
		return nil, err
	}
	var f sync.Fetcher = sync.NewTiingoClient(&c.Tiingo)
	if c.Tiingo.CircuitBreaker {
		f = sync.NewCircuitBreakerFetcher(f, &c.Tiingo)
	}
	return f, nil
}

// newEngine wires the engine with logging and, if l is not nil, failure
// ledger observers.
func newEngine(c *config.Config, store sync.Store, l *ledger.Ledger) (*sync.Engine, error) {
	fetcher, err := newFetcher(c)
	if err != nil {
		return nil, err
	}

	observers := sync.MultiObserver{sync.LogObserver{}}
	if l != nil {
		observers = append(observers, ledger.NewObserver(l))
	}

	return sync.NewEngine(store, fetcher,
		sync.WithObserver(observers),
		sync.WithReferenceResolver(sync.NewReferenceResolver(fetcher, c.Sync.CalendarTicker, c.Sync.CalendarLookback)),
	), nil
}

// withSignals returns a context canceled on the second SIGINT/SIGTERM. The
// first signal calls graceful, if not nil, or cancels when it is nil.
func withSignals(parent context.Context, graceful func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if graceful == nil {
				logging.Info().Str("signal", sig.String()).Msg("Shutting down")
				cancel()
				return
			}
			logging.Warn().Str("signal", sig.String()).Msg("Stopping after in-flight tickers; signal again to abort")
			graceful()
		}
		select {
		case <-ctx.Done():
		case <-sigCh:
			logging.Warn().Msg("Aborting")
			cancel()
		}
	}()

	return ctx, cancel
}
