// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"context"
	"time"

	"github.com/tomtom215/eodsync/internal/models"
)

// SyncSequential runs the same planning and settling as Sync on the calling
// goroutine: one fetch at a time, each followed by its write. Useful for
// debugging and for data sources that forbid parallel requests.
// Options.Concurrency is ignored.
func (e *Engine) SyncSequential(ctx context.Context, tickers []models.Ticker, opts Options) (*Result, error) {
	return e.run(ctx, tickers, opts, e.runBatchSequential)
}

func (e *Engine) runBatchSequential(ctx context.Context, stop <-chan struct{}, batch []models.Ticker, opts Options, res *Result) {
	jobs := e.plan(ctx, batch, opts, res)
	for i, j := range jobs {
		if isClosed(stop) || ctx.Err() != nil {
			remaining := make([]string, 0, len(jobs)-i)
			for _, rest := range jobs[i:] {
				remaining = append(remaining, rest.ticker.Symbol)
			}
			res.markUnprocessed(remaining...)
			return
		}

		began := time.Now()
		records, err := e.fetcher.Fetch(ctx, j.ticker.Symbol, j.rng.Start, j.rng.End)
		e.deliver(ctx, res, e.settle(ctx, fetched{job: j, records: records, err: err, began: began}))
	}
}
