// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/eodsync/internal/metrics"
	"github.com/tomtom215/eodsync/internal/models"
)

// SymbolSet is an unordered set of ticker symbols.
type SymbolSet map[string]struct{}

// NewSymbolSet returns a set holding symbols.
func NewSymbolSet(symbols ...string) SymbolSet {
	s := make(SymbolSet, len(symbols))
	for _, sym := range symbols {
		s[sym] = struct{}{}
	}
	return s
}

// Add inserts symbol.
func (s SymbolSet) Add(symbol string) { s[symbol] = struct{}{} }

// Has reports membership.
func (s SymbolSet) Has(symbol string) bool {
	_, ok := s[symbol]
	return ok
}

// Len returns the set size.
func (s SymbolSet) Len() int { return len(s) }

// Sorted returns the members in lexical order.
func (s SymbolSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for sym := range s {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s SymbolSet) clone() SymbolSet {
	c := make(SymbolSet, len(s))
	for sym := range s {
		c[sym] = struct{}{}
	}
	return c
}

// Result aggregates the outcomes of one run.
//
// Each processed ticker is in exactly one of the internal sets: updated,
// no new data, missing (added or skipped), or errored. Missing() reports
// missing and errored together.
//
// Thread Safety: recording and reading are safe for concurrent use.
type Result struct {
	RunID        string
	ReferenceEnd time.Time
	StartedAt    time.Time
	FinishedAt   time.Time

	mu          sync.Mutex
	updated     SymbolSet
	noNewData   SymbolSet
	missing     SymbolSet
	added       SymbolSet
	errored     map[string]error
	unprocessed []string
	rows        int64
	stopped     bool
}

func newResult(runID string, refEnd time.Time) *Result {
	return &Result{
		RunID:        runID,
		ReferenceEnd: refEnd,
		StartedAt:    time.Now(),
		updated:      make(SymbolSet),
		noNewData:    make(SymbolSet),
		missing:      make(SymbolSet),
		added:        make(SymbolSet),
		errored:      make(map[string]error),
	}
}

// record files o into its set. A later outcome for the same symbol replaces
// the earlier one, keeping the sets disjoint.
func (r *Result) record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.updated, o.Symbol)
	delete(r.noNewData, o.Symbol)
	delete(r.missing, o.Symbol)
	delete(r.added, o.Symbol)
	delete(r.errored, o.Symbol)

	switch o.Kind {
	case OutcomeUpdated:
		r.updated.Add(o.Symbol)
	case OutcomeNoNewData:
		r.noNewData.Add(o.Symbol)
	case OutcomeMissingAdded:
		r.missing.Add(o.Symbol)
		r.added.Add(o.Symbol)
	case OutcomeMissingSkipped:
		r.missing.Add(o.Symbol)
	case OutcomeError:
		r.errored[o.Symbol] = o.Err
	}
	r.rows += int64(o.Rows)

	metrics.RecordOutcome(o.Kind.String())
}

func (r *Result) markUnprocessed(symbols ...string) {
	if len(symbols) == 0 {
		return
	}
	r.mu.Lock()
	r.unprocessed = append(r.unprocessed, symbols...)
	r.stopped = true
	r.mu.Unlock()
}

func (r *Result) finish() {
	r.mu.Lock()
	r.FinishedAt = time.Now()
	r.mu.Unlock()
}

// Updated returns tickers that had stored rows and received new ones.
func (r *Result) Updated() SymbolSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updated.clone()
}

// Missing returns tickers without prior data plus tickers that failed.
func (r *Result) Missing() SymbolSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.missing.clone()
	for sym := range r.errored {
		out.Add(sym)
	}
	return out
}

// MissingAdded returns tickers backfilled from scratch in this run.
func (r *Result) MissingAdded() SymbolSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.added.clone()
}

// NoNewData returns tickers that were already current.
func (r *Result) NoNewData() SymbolSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.noNewData.clone()
}

// Errors returns the failure cause per errored ticker.
func (r *Result) Errors() map[string]error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]error, len(r.errored))
	for sym, err := range r.errored {
		out[sym] = err
	}
	return out
}

// Unprocessed returns tickers never attempted because the run was stopped.
func (r *Result) Unprocessed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.unprocessed...)
}

// Stopped reports whether the run ended early.
func (r *Result) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// RowsWritten is the total number of rows upserted.
func (r *Result) RowsWritten() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Processed is the number of tickers with a recorded outcome.
func (r *Result) Processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updated) + len(r.noNewData) + len(r.missing) + len(r.errored)
}

// Duration is the wall time of the run so far.
func (r *Result) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns the reportable shape of the run.
func (r *Result) Summary() models.SyncSummary {
	dur := r.Duration()

	r.mu.Lock()
	defer r.mu.Unlock()

	errSyms := make([]string, 0, len(r.errored))
	for sym := range r.errored {
		errSyms = append(errSyms, sym)
	}
	sort.Strings(errSyms)

	return models.SyncSummary{
		RunID:        r.RunID,
		ReferenceEnd: models.FormatDay(r.ReferenceEnd),
		Updated:      len(r.updated),
		Missing:      len(r.missing) + len(r.errored),
		NoNewData:    len(r.noNewData),
		Errors:       len(r.errored),
		Unprocessed:  len(r.unprocessed),
		RowsWritten:  r.rows,
		Duration:     dur,
		ErrorSymbols: errSyms,
	}
}
