// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"time"
)

// OutcomeKind classifies how one ticker ended a run.
type OutcomeKind int

const (
	// OutcomeUpdated: stored rows existed and new rows were written.
	OutcomeUpdated OutcomeKind = iota + 1

	// OutcomeNoNewData: stored rows existed and nothing newer was available,
	// either because the store was current or the source had no records.
	OutcomeNoNewData

	// OutcomeMissingAdded: no stored rows before the run; history was written.
	OutcomeMissingAdded

	// OutcomeMissingSkipped: no stored rows, and nothing was written, either
	// because add_missing is off or the source had nothing to backfill.
	OutcomeMissingSkipped

	// OutcomeError: fetch or write failed. Err carries the cause.
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeUpdated:
		return "updated"
	case OutcomeNoNewData:
		return "no_new_data"
	case OutcomeMissingAdded:
		return "missing_added"
	case OutcomeMissingSkipped:
		return "missing_skipped"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the final state of one ticker in one run.
type Outcome struct {
	Symbol   string
	Kind     OutcomeKind
	Range    DateRange
	Rows     int
	Err      error
	Duration time.Duration
}
