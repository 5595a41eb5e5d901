// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/database"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/sync"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenInMemory(0)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_RecordMergesAttempts(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	first := time.Date(2023, 6, 5, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return first }
	if err := l.Record(ctx, Failure{Symbol: "ZZZZ", RunID: "run-1", Kind: KindFetch, Message: "404", StatusCode: 404}); err != nil {
		t.Fatalf("record: %v", err)
	}

	second := first.Add(24 * time.Hour)
	l.now = func() time.Time { return second }
	if err := l.Record(ctx, Failure{Symbol: "ZZZZ", RunID: "run-2", Kind: KindStorage, Message: "constraint"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	e, err := l.Get(ctx, "ZZZZ")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Attempts != 2 {
		t.Errorf("attempts: expected 2, got %d", e.Attempts)
	}
	if e.RunID != "run-2" || e.Kind != KindStorage || e.Message != "constraint" {
		t.Errorf("latest failure not kept: %+v", e)
	}
	if e.StatusCode != 0 {
		t.Errorf("status code: expected 0, got %d", e.StatusCode)
	}
	if !e.FirstSeen.Equal(first) {
		t.Errorf("first seen: expected %v, got %v", first, e.FirstSeen)
	}
	if !e.LastSeen.Equal(second) {
		t.Errorf("last seen: expected %v, got %v", second, e.LastSeen)
	}
}

func TestLedger_ClearAndList(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for _, sym := range []string{"MSFT", "AAPL", "IBM"} {
		if err := l.Record(ctx, Failure{Symbol: sym, Kind: KindOther}); err != nil {
			t.Fatalf("record %s: %v", sym, err)
		}
	}

	syms, err := l.Symbols(ctx)
	if err != nil {
		t.Fatalf("symbols: %v", err)
	}
	if fmt.Sprint(syms) != "[AAPL IBM MSFT]" {
		t.Errorf("symbols: expected sorted [AAPL IBM MSFT], got %v", syms)
	}

	if err := l.Clear(ctx, "IBM", "UNKNOWN"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	n, err := l.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count: expected 2, got %d", n)
	}

	if _, err := l.Get(ctx, "IBM"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
	if err := l.Clear(ctx); err != nil {
		t.Errorf("empty clear: %v", err)
	}
}

func TestLedger_RecordRequiresSymbol(t *testing.T) {
	l := openTestLedger(t)
	if err := l.Record(context.Background(), Failure{}); !errors.Is(err, ErrEmptySymbol) {
		t.Errorf("expected ErrEmptySymbol, got %v", err)
	}
}

func TestLedger_Prune(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, sym := range []string{"OLD1", "OLD2", "NEW"} {
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		if sym == "NEW" {
			at = base.Add(30 * 24 * time.Hour)
		}
		l.now = func() time.Time { return at }
		if err := l.Record(ctx, Failure{Symbol: sym}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	removed, err := l.Prune(ctx, base.Add(10*24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed: expected 2, got %d", removed)
	}
	syms, _ := l.Symbols(ctx)
	if len(syms) != 1 || syms[0] != "NEW" {
		t.Errorf("expected only NEW to remain, got %v", syms)
	}
}

func TestLedger_ClosedOperations(t *testing.T) {
	l, err := OpenInMemory(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	ctx := context.Background()
	if err := l.Record(ctx, Failure{Symbol: "X"}); !errors.Is(err, ErrLedgerClosed) {
		t.Errorf("Record: expected ErrLedgerClosed, got %v", err)
	}
	if _, err := l.List(ctx); !errors.Is(err, ErrLedgerClosed) {
		t.Errorf("List: expected ErrLedgerClosed, got %v", err)
	}
	if err := l.RunGC(); !errors.Is(err, ErrLedgerClosed) {
		t.Errorf("RunGC: expected ErrLedgerClosed, got %v", err)
	}
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	cfg := &config.LedgerConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "ledger"), Retention: time.Hour}
	ctx := context.Background()

	l, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.Record(ctx, Failure{Symbol: "MSFT", Kind: KindFetch}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.RunGC(); err != nil {
		t.Errorf("gc: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l, err = Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()

	e, err := l.Get(ctx, "MSFT")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if e.Attempts != 1 {
		t.Errorf("attempts: expected 1, got %d", e.Attempts)
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(&config.LedgerConfig{Enabled: true}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestFailureFromOutcome(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   string
		wantStatus int
	}{
		{
			name:       "fetch error",
			err:        fmt.Errorf("wrapped: %w", &sync.FetchError{Kind: sync.FetchFatal, Symbol: "X", StatusCode: 404, Err: errors.New("not found")}),
			wantKind:   KindFetch,
			wantStatus: 404,
		},
		{
			name:     "storage error",
			err:      &database.StorageError{Op: "bulk upsert", Symbol: "X", Err: errors.New("constraint")},
			wantKind: KindStorage,
		},
		{
			name:     "other error",
			err:      errors.New("load latest dates: locked"),
			wantKind: KindOther,
		},
		{
			name:     "nil error",
			wantKind: KindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FailureFromOutcome("run-9", sync.Outcome{Symbol: "X", Kind: sync.OutcomeError, Err: tt.err})
			if f.Kind != tt.wantKind {
				t.Errorf("kind: expected %s, got %s", tt.wantKind, f.Kind)
			}
			if f.StatusCode != tt.wantStatus {
				t.Errorf("status: expected %d, got %d", tt.wantStatus, f.StatusCode)
			}
			if f.RunID != "run-9" || f.Symbol != "X" {
				t.Errorf("identity not kept: %+v", f)
			}
			if tt.err != nil && f.Message != tt.err.Error() {
				t.Errorf("message: expected %q, got %q", tt.err.Error(), f.Message)
			}
		})
	}
}

func TestObserver_RecordsAndClears(t *testing.T) {
	l := openTestLedger(t)
	obs := NewObserver(l)
	ctx := logging.ContextWithRunID(context.Background(), "run-42")

	obs.TickerDone(ctx, sync.Outcome{Symbol: "BAD", Kind: sync.OutcomeError, Err: errors.New("boom")})
	obs.TickerDone(ctx, sync.Outcome{Symbol: "GOOD", Kind: sync.OutcomeError, Err: errors.New("boom")})
	obs.TickerDone(ctx, sync.Outcome{Symbol: "GOOD", Kind: sync.OutcomeUpdated, Rows: 3})
	obs.TickerDone(ctx, sync.Outcome{Symbol: "SKIP", Kind: sync.OutcomeMissingSkipped})
	obs.RunFinished(ctx, nil)

	syms, err := l.Symbols(ctx)
	if err != nil {
		t.Fatalf("symbols: %v", err)
	}
	if len(syms) != 1 || syms[0] != "BAD" {
		t.Fatalf("expected only BAD, got %v", syms)
	}
	e, _ := l.Get(ctx, "BAD")
	if e.RunID != "run-42" {
		t.Errorf("run id: expected run-42, got %s", e.RunID)
	}
}

func TestObserver_ClosedLedgerDoesNotPanic(t *testing.T) {
	l, err := OpenInMemory(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = l.Close()

	obs := NewObserver(l)
	obs.TickerDone(context.Background(), sync.Outcome{Symbol: "BAD", Kind: sync.OutcomeError, Err: errors.New("boom")})
	obs.RunFinished(context.Background(), nil)
}
