// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
scheduler.go - Bounded-Concurrency Sync Engine

Per batch:
 1. One LatestDates query for the batch's symbols
 2. RangeFor per ticker; up-to-date and skipped-missing tickers are
    classified without a job
 3. Concurrency workers drain the job channel and fetch
 4. Fetched payloads enter the write lane (capacity = batch size)
 5. A single writer drains the lane and upserts; it is the only goroutine
    that mutates storage
 6. The next batch starts after the writer has drained

Shutdown:
  - Engine.Shutdown stops the run gracefully: workers take no new jobs,
    in-flight fetches and queued writes finish, no later batch starts, and
    the remaining tickers are reported as unprocessed
  - Cancelling ctx aborts in-flight HTTP calls; tickers whose fetch or
    write was cut short, and queued ones, are reported as unprocessed
    rather than errored
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/metrics"
	"github.com/tomtom215/eodsync/internal/models"
)

// Store is the storage boundary used by the engine.
type Store interface {
	// LatestDates returns max(date) per symbol; symbols without rows are absent.
	LatestDates(ctx context.Context, symbols []string) (map[string]time.Time, error)

	// UpsertPrices merges records for symbol atomically and returns the
	// number of rows written.
	UpsertPrices(ctx context.Context, symbol string, records []models.PriceRecord) (int, error)
}

// Defaults for zero-valued Options fields.
const (
	DefaultConcurrency = 8
	DefaultBatchSize   = 500
)

// Options control one run.
type Options struct {
	// Concurrency is the number of fetch workers.
	Concurrency int

	// BatchSize is the number of tickers sharing one latest-date snapshot.
	BatchSize int

	// AddMissing backfills tickers with no stored rows.
	AddMissing bool

	// ReferenceEnd pins the reference end date. Zero resolves it from the
	// calendar ticker.
	ReferenceEnd time.Time

	// Stop, when closed, shuts the run down like Engine.Shutdown. Unlike
	// Shutdown it also takes effect if closed before the run begins.
	Stop <-chan struct{}
}

// OptionsFromConfig maps the sync configuration section to run options.
func OptionsFromConfig(cfg *config.SyncConfig) Options {
	return Options{
		Concurrency: cfg.Concurrency,
		BatchSize:   cfg.BatchSize,
		AddMissing:  cfg.AddMissing,
	}
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if !o.ReferenceEnd.IsZero() {
		o.ReferenceEnd = models.Day(o.ReferenceEnd)
	}
	return o
}

// ErrRunInProgress is returned when an engine is asked to start a second
// concurrent run.
var ErrRunInProgress = errors.New("sync run already in progress")

// Engine runs incremental syncs. One engine executes one run at a time.
type Engine struct {
	store    Store
	fetcher  Fetcher
	resolver *ReferenceResolver
	observer Observer
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	stopped bool

	obsMu sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithObserver sets the progress observer. The default is LogObserver.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithReferenceResolver sets how the reference end date is found when a run
// does not pin one. The default uses SPY over 14 days through the engine's
// fetcher.
func WithReferenceResolver(r *ReferenceResolver) EngineOption {
	return func(e *Engine) { e.resolver = r }
}

// WithClock overrides time.Now for reference date resolution.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine writing to store and reading from fetcher.
func NewEngine(store Store, fetcher Fetcher, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		fetcher:  fetcher,
		observer: LogObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = NewReferenceResolver(fetcher, "SPY", 14*24*time.Hour)
	}
	return e
}

// Shutdown asks the active run to stop gracefully. It returns immediately;
// the run's Sync call returns once in-flight work has drained. Calling it
// with no active run is a no-op.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.stopLocked()
	}
}

// shutdownRun stops the run that owns stop, and no later one.
func (e *Engine) shutdownRun(stop <-chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.stop == stop {
		e.stopLocked()
	}
}

func (e *Engine) stopLocked() {
	if !e.stopped {
		e.stopped = true
		close(e.stop)
	}
}

// Running reports whether a run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) beginRun() (<-chan struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, ErrRunInProgress
	}
	e.running = true
	e.stopped = false
	e.stop = make(chan struct{})
	return e.stop, nil
}

func (e *Engine) endRun() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func (e *Engine) notify(ctx context.Context, res *Result, o Outcome) {
	res.record(o)
	e.obsMu.Lock()
	e.observer.TickerDone(ctx, o)
	e.obsMu.Unlock()
}

// deliver notifies o, except that an error produced after ctx was canceled
// is the abort itself, not a ticker failure: the ticker is reported
// unprocessed and observers never see it.
func (e *Engine) deliver(ctx context.Context, res *Result, o Outcome) {
	if o.Kind == OutcomeError && ctx.Err() != nil {
		res.markUnprocessed(o.Symbol)
		return
	}
	e.notify(ctx, res, o)
}

// Sync runs the concurrent pipeline over tickers and returns the aggregated
// result.
//
// The returned error is non-nil only for run-level failures: an
// unresolvable reference end date, a concurrent run, or ctx cancellation.
// Per-ticker failures are reported in the Result. A non-nil Result is
// returned in every case except ErrRunInProgress.
func (e *Engine) Sync(ctx context.Context, tickers []models.Ticker, opts Options) (*Result, error) {
	return e.run(ctx, tickers, opts, e.runBatch)
}

type batchFunc func(ctx context.Context, stop <-chan struct{}, batch []models.Ticker, opts Options, res *Result)

func (e *Engine) run(ctx context.Context, tickers []models.Ticker, opts Options, batchFn batchFunc) (*Result, error) {
	stop, err := e.beginRun()
	if err != nil {
		return nil, err
	}
	defer e.endRun()

	if opts.Stop != nil {
		if isClosed(opts.Stop) {
			e.shutdownRun(stop)
		} else {
			runDone := make(chan struct{})
			defer close(runDone)
			go func() {
				select {
				case <-opts.Stop:
					e.shutdownRun(stop)
				case <-runDone:
				}
			}()
		}
	}

	if logging.RunIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewRunID(ctx)
	}
	runID := logging.RunIDFromContext(ctx)
	opts = opts.withDefaults()
	tickers = dedupeTickers(tickers)

	refEnd := opts.ReferenceEnd
	if refEnd.IsZero() {
		refEnd, err = e.resolver.Resolve(ctx, e.now())
		if err != nil {
			res := newResult(runID, time.Time{})
			res.markUnprocessed(symbolsOf(tickers)...)
			res.finish()
			metrics.RecordSyncRun("failed", res.Duration())
			return res, err
		}
	}
	opts.ReferenceEnd = refEnd

	res := newResult(runID, refEnd)
	e.observer.RunStarted(ctx, runID, refEnd, len(tickers))

	var runErr error
	for offset, index := 0, 0; offset < len(tickers); offset, index = offset+opts.BatchSize, index+1 {
		if err := ctx.Err(); err != nil {
			res.markUnprocessed(symbolsOf(tickers[offset:])...)
			runErr = err
			break
		}
		if isClosed(stop) {
			res.markUnprocessed(symbolsOf(tickers[offset:])...)
			break
		}

		end := offset + opts.BatchSize
		if end > len(tickers) {
			end = len(tickers)
		}
		batch := tickers[offset:end]

		e.observer.BatchStarted(ctx, index, len(batch))
		began := time.Now()
		batchFn(ctx, stop, batch, opts, res)
		metrics.SyncBatchDuration.Observe(time.Since(began).Seconds())
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	res.finish()
	e.observer.RunFinished(ctx, res)

	status := "ok"
	switch {
	case runErr != nil:
		status = "failed"
	case res.Stopped():
		status = "stopped"
	}
	metrics.RecordSyncRun(status, res.Duration())

	return res, runErr
}

// job is one ticker that needs a fetch.
type job struct {
	ticker    models.Ticker
	rng       DateRange
	hasLatest bool
}

// fetched is a job's fetch result on its way to the writer.
type fetched struct {
	job
	records []models.PriceRecord
	err     error
	skipped bool // stop requested before the fetch began
	began   time.Time
}

// plan loads the batch's latest dates and splits it into jobs. Tickers that
// need no fetch are settled immediately. On a storage failure every ticker
// in the batch is recorded as errored and no jobs are returned.
func (e *Engine) plan(ctx context.Context, batch []models.Ticker, opts Options, res *Result) []job {
	latest, err := e.store.LatestDates(ctx, symbolsOf(batch))
	if err != nil {
		err = fmt.Errorf("load latest dates: %w", err)
		for _, t := range batch {
			e.deliver(ctx, res, Outcome{Symbol: t.Symbol, Kind: OutcomeError, Err: err})
		}
		return nil
	}

	jobs := make([]job, 0, len(batch))
	for _, t := range batch {
		last, hasLatest := latest[t.Symbol]
		rng := RangeFor(t, last, hasLatest, opts.ReferenceEnd)

		switch {
		case !rng.NeedsFetch() && hasLatest:
			e.notify(ctx, res, Outcome{Symbol: t.Symbol, Kind: OutcomeNoNewData, Range: rng})
		case !rng.NeedsFetch():
			e.notify(ctx, res, Outcome{Symbol: t.Symbol, Kind: OutcomeMissingSkipped, Range: rng})
		case !hasLatest && !opts.AddMissing:
			e.notify(ctx, res, Outcome{Symbol: t.Symbol, Kind: OutcomeMissingSkipped, Range: rng})
		default:
			jobs = append(jobs, job{ticker: t, rng: rng, hasLatest: hasLatest})
		}
	}
	return jobs
}

// runBatch executes one batch through the worker pool and the single writer.
func (e *Engine) runBatch(ctx context.Context, stop <-chan struct{}, batch []models.Ticker, opts Options, res *Result) {
	jobs := e.plan(ctx, batch, opts, res)
	if len(jobs) == 0 {
		return
	}

	jobCh := make(chan job, len(jobs))
	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)

	lane := make(chan fetched, opts.BatchSize)

	workers := opts.Concurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			e.fetchWorker(ctx, stop, jobCh, lane)
		}()
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		e.writeLoop(ctx, lane, res)
	}()

	wg.Wait()
	close(lane)
	<-writerDone
}

// fetchWorker drains jobs until the channel is empty. After a stop request
// or ctx cancellation remaining jobs are passed through as skipped without
// fetching.
func (e *Engine) fetchWorker(ctx context.Context, stop <-chan struct{}, jobs <-chan job, lane chan<- fetched) {
	for j := range jobs {
		if isClosed(stop) || ctx.Err() != nil {
			lane <- fetched{job: j, skipped: true}
			continue
		}
		began := time.Now()
		records, err := e.fetcher.Fetch(ctx, j.ticker.Symbol, j.rng.Start, j.rng.End)
		lane <- fetched{job: j, records: records, err: err, began: began}
		metrics.SyncWriteLaneDepth.Set(float64(len(lane)))
	}
}

func dedupeTickers(tickers []models.Ticker) []models.Ticker {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]models.Ticker, 0, len(tickers))
	for _, t := range tickers {
		t.Symbol = models.NormalizeSymbol(t.Symbol)
		if t.Symbol == "" {
			continue
		}
		if _, ok := seen[t.Symbol]; ok {
			continue
		}
		seen[t.Symbol] = struct{}{}
		out = append(out, t)
	}
	return out
}

func symbolsOf(tickers []models.Ticker) []string {
	out := make([]string, len(tickers))
	for i, t := range tickers {
		out[i] = t.Symbol
	}
	return out
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
