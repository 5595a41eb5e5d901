// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/eodsync/internal/models"
)

// memStore is an in-memory Store keyed by (symbol, date) with the same
// overwrite semantics as the DuckDB upsert.
type memStore struct {
	mu          sync.Mutex
	rows        map[string]map[time.Time]models.PriceRow
	failSymbols map[string]error
	latestErr   error

	latestCalls atomic.Int32
	writing     atomic.Int32
	maxWriting  atomic.Int32
	writeOrder  []string
}

func newMemStore() *memStore {
	return &memStore{
		rows:        make(map[string]map[time.Time]models.PriceRow),
		failSymbols: make(map[string]error),
	}
}

// seed stores one row per date for symbol.
func (s *memStore) seed(symbol string, dates ...time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[symbol] == nil {
		s.rows[symbol] = make(map[time.Time]models.PriceRow)
	}
	for _, d := range dates {
		s.rows[symbol][models.Day(d)] = models.PriceRecord{Date: d}.Normalize(symbol)
	}
}

func (s *memStore) LatestDates(_ context.Context, symbols []string) (map[string]time.Time, error) {
	s.latestCalls.Add(1)
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time)
	for _, sym := range symbols {
		for d := range s.rows[sym] {
			if d.After(out[sym]) {
				out[sym] = d
			}
		}
	}
	return out, nil
}

func (s *memStore) UpsertPrices(_ context.Context, symbol string, records []models.PriceRecord) (int, error) {
	n := s.writing.Add(1)
	defer s.writing.Add(-1)
	for {
		prev := s.maxWriting.Load()
		if n <= prev || s.maxWriting.CompareAndSwap(prev, n) {
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeOrder = append(s.writeOrder, symbol)

	if err := s.failSymbols[symbol]; err != nil {
		return 0, err
	}
	if s.rows[symbol] == nil {
		s.rows[symbol] = make(map[time.Time]models.PriceRow)
	}
	seen := make(map[time.Time]struct{}, len(records))
	for _, r := range records {
		row := r.Normalize(symbol)
		s.rows[symbol][row.Date] = row
		seen[row.Date] = struct{}{}
	}
	return len(seen), nil
}

func (s *memStore) count(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[symbol])
}

func (s *memStore) dates(symbol string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Time, 0, len(s.rows[symbol]))
	for d := range s.rows[symbol] {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// fetchCall records one Fetch invocation.
type fetchCall struct {
	Symbol     string
	Start, End time.Time
}

// fakeFetcher serves business days in the requested range unless a
// per-symbol override is set. It tracks calls and peak concurrency.
type fakeFetcher struct {
	mu        sync.Mutex
	calls     []fetchCall
	errs      map[string]error
	empty     map[string]bool
	delay     time.Duration
	block     chan struct{}   // when set, Fetch waits on it
	started   chan string     // when set, receives each symbol as a fetch starts
	free      map[string]bool // symbols that bypass block and started
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		errs:  make(map[string]error),
		empty: make(map[string]bool),
		free:  map[string]bool{"SPY": true},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceRecord, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxFlight.Load()
		if n <= prev || f.maxFlight.CompareAndSwap(prev, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{Symbol: symbol, Start: start, End: end})
	err := f.errs[symbol]
	empty := f.empty[symbol]
	free := f.free[symbol]
	f.mu.Unlock()

	if f.started != nil && !free {
		f.started <- symbol
	}
	if f.block != nil && !free {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, fatalError(symbol, 0, ctx.Err())
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, fatalError(symbol, 0, ctx.Err())
		}
	}

	if err != nil {
		return nil, err
	}
	if empty {
		return nil, ErrNoData
	}
	recs := businessDays(symbol, start, end)
	if len(recs) == 0 {
		return nil, ErrNoData
	}
	return recs, nil
}

func (f *fakeFetcher) callsFor(symbol string) []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fetchCall
	for _, c := range f.calls {
		if c.Symbol == symbol {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// businessDays returns one record per weekday in [start, end].
func businessDays(symbol string, start, end time.Time) []models.PriceRecord {
	var out []models.PriceRecord
	for d := models.Day(start); !d.After(models.Day(end)); d = models.NextDay(d) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		px := float64(d.Day())
		out = append(out, models.PriceRecord{
			Symbol:   symbol,
			Date:     d,
			Close:    models.Float64(px),
			AdjClose: models.Float64(px),
			Volume:   models.Int64(1000),
		})
	}
	return out
}

// recordingObserver keeps every outcome it sees.
type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
	batches  []int
	started  int
	finished int
}

func (r *recordingObserver) RunStarted(context.Context, string, time.Time, int) {
	r.mu.Lock()
	r.started++
	r.mu.Unlock()
}

func (r *recordingObserver) BatchStarted(_ context.Context, _ int, size int) {
	r.mu.Lock()
	r.batches = append(r.batches, size)
	r.mu.Unlock()
}

func (r *recordingObserver) TickerDone(_ context.Context, o Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

func (r *recordingObserver) RunFinished(context.Context, *Result) {
	r.mu.Lock()
	r.finished++
	r.mu.Unlock()
}

func (r *recordingObserver) kinds() map[string]OutcomeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OutcomeKind, len(r.outcomes))
	for _, o := range r.outcomes {
		out[o.Symbol] = o.Kind
	}
	return out
}

var errBoom = errors.New("boom")
