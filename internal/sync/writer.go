// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/eodsync/internal/metrics"
)

// writeLoop is the single writer. It drains the lane in arrival order and is
// the only caller of Store.UpsertPrices during a concurrent run.
func (e *Engine) writeLoop(ctx context.Context, lane <-chan fetched, res *Result) {
	for f := range lane {
		metrics.SyncWriteLaneDepth.Set(float64(len(lane)))
		if f.skipped {
			res.markUnprocessed(f.ticker.Symbol)
			continue
		}
		e.deliver(ctx, res, e.settle(ctx, f))
	}
	metrics.SyncWriteLaneDepth.Set(0)
}

// settle turns a fetch result into an outcome, writing records if any.
func (e *Engine) settle(ctx context.Context, f fetched) (o Outcome) {
	o = Outcome{Symbol: f.ticker.Symbol, Range: f.rng}
	defer func() {
		if !f.began.IsZero() {
			o.Duration = time.Since(f.began)
		}
	}()

	switch {
	case errors.Is(f.err, ErrNoData):
		o.Kind = emptyKind(f.hasLatest)
		return o
	case f.err != nil:
		o.Kind, o.Err = OutcomeError, f.err
		return o
	case len(f.records) == 0:
		o.Kind = emptyKind(f.hasLatest)
		return o
	}

	rows, err := e.store.UpsertPrices(ctx, f.ticker.Symbol, f.records)
	if err != nil {
		o.Kind, o.Err = OutcomeError, err
		return o
	}

	o.Rows = rows
	if f.hasLatest {
		o.Kind = OutcomeUpdated
	} else {
		o.Kind = OutcomeMissingAdded
	}
	return o
}

// emptyKind classifies a fetch that produced nothing. A ticker without
// stored rows stays missing.
func emptyKind(hasLatest bool) OutcomeKind {
	if hasLatest {
		return OutcomeNoNewData
	}
	return OutcomeMissingSkipped
}
