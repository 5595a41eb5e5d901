// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package ledger

import (
	"context"
	"errors"

	"github.com/tomtom215/eodsync/internal/database"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/sync"
)

// Failure kinds stored in Entry.Kind.
const (
	KindFetch   = "fetch"
	KindStorage = "storage"
	KindOther   = "other"
)

// Failure describes one errored ticker in one run.
type Failure struct {
	Symbol     string
	RunID      string
	Kind       string
	Message    string
	StatusCode int
}

// FailureFromOutcome classifies an errored outcome.
func FailureFromOutcome(runID string, o sync.Outcome) Failure {
	f := Failure{Symbol: o.Symbol, RunID: runID, Kind: KindOther}
	if o.Err == nil {
		return f
	}
	f.Message = o.Err.Error()

	var fe *sync.FetchError
	var se *database.StorageError
	switch {
	case errors.As(o.Err, &fe):
		f.Kind = KindFetch
		f.StatusCode = fe.StatusCode
	case errors.As(o.Err, &se):
		f.Kind = KindStorage
	}
	return f
}

// Observer records errored tickers in a Ledger and clears tickers that
// later settle successfully. Ledger errors are logged, never propagated:
// bookkeeping must not fail a sync.
type Observer struct {
	sync.NopObserver
	ledger *Ledger
}

// NewObserver returns an observer writing to l.
func NewObserver(l *Ledger) *Observer {
	return &Observer{ledger: l}
}

// TickerDone implements sync.Observer.
func (o *Observer) TickerDone(ctx context.Context, out sync.Outcome) {
	var err error
	switch out.Kind {
	case sync.OutcomeError:
		err = o.ledger.Record(ctx, FailureFromOutcome(logging.RunIDFromContext(ctx), out))
	case sync.OutcomeUpdated, sync.OutcomeNoNewData, sync.OutcomeMissingAdded:
		err = o.ledger.Clear(ctx, out.Symbol)
	default:
		return
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("symbol", out.Symbol).Msg("Failure ledger update failed")
	}
}

// RunFinished implements sync.Observer.
func (o *Observer) RunFinished(_ context.Context, _ *sync.Result) {
	o.ledger.refreshGauge()
}
