// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"context"
	"time"

	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/models"
)

// Observer receives run progress. Calls for one run arrive from a single
// goroutine at a time and must not block for long.
type Observer interface {
	RunStarted(ctx context.Context, runID string, refEnd time.Time, tickers int)
	BatchStarted(ctx context.Context, index, size int)
	TickerDone(ctx context.Context, o Outcome)
	RunFinished(ctx context.Context, res *Result)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) RunStarted(context.Context, string, time.Time, int) {}
func (NopObserver) BatchStarted(context.Context, int, int)             {}
func (NopObserver) TickerDone(context.Context, Outcome)                {}
func (NopObserver) RunFinished(context.Context, *Result)               {}

// LogObserver writes progress through the structured logger.
// Updated and skipped tickers log at debug, failures at warn.
type LogObserver struct{}

func (LogObserver) RunStarted(ctx context.Context, runID string, refEnd time.Time, tickers int) {
	logging.Ctx(ctx).Info().
		Str("reference_end", models.FormatDay(refEnd)).
		Int("tickers", tickers).
		Msg("Sync run started")
}

func (LogObserver) BatchStarted(ctx context.Context, index, size int) {
	logging.Ctx(ctx).Debug().Int("batch", index).Int("size", size).Msg("Sync batch started")
}

func (LogObserver) TickerDone(ctx context.Context, o Outcome) {
	if o.Kind == OutcomeError {
		logging.Ctx(ctx).Warn().
			Str("symbol", o.Symbol).
			Str("range", o.Range.String()).
			Err(o.Err).
			Msg("Ticker sync failed")
		return
	}
	logging.Ctx(ctx).Debug().
		Str("symbol", o.Symbol).
		Str("outcome", o.Kind.String()).
		Str("range", o.Range.String()).
		Int("rows", o.Rows).
		Dur("duration", o.Duration).
		Msg("Ticker synced")
}

func (LogObserver) RunFinished(ctx context.Context, res *Result) {
	s := res.Summary()
	ev := logging.Ctx(ctx).Info()
	if s.Errors > 0 || s.Unprocessed > 0 {
		ev = logging.Ctx(ctx).Warn()
	}
	ev.Int("updated", s.Updated).
		Int("missing", s.Missing).
		Int("no_new_data", s.NoNewData).
		Int("errors", s.Errors).
		Int("unprocessed", s.Unprocessed).
		Int64("rows", s.RowsWritten).
		Dur("duration", s.Duration).
		Msg("Sync run finished")
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) RunStarted(ctx context.Context, runID string, refEnd time.Time, tickers int) {
	for _, o := range m {
		o.RunStarted(ctx, runID, refEnd, tickers)
	}
}

func (m MultiObserver) BatchStarted(ctx context.Context, index, size int) {
	for _, o := range m {
		o.BatchStarted(ctx, index, size)
	}
}

func (m MultiObserver) TickerDone(ctx context.Context, o Outcome) {
	for _, obs := range m {
		obs.TickerDone(ctx, o)
	}
}

func (m MultiObserver) RunFinished(ctx context.Context, res *Result) {
	for _, o := range m {
		o.RunFinished(ctx, res)
	}
}
