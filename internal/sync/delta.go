// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"fmt"
	"time"

	"github.com/tomtom215/eodsync/internal/models"
)

// RangeKind is the action the delta calculator chose for one ticker.
type RangeKind int

const (
	// RangeUpToDate means the store already reaches the reference end date.
	RangeUpToDate RangeKind = iota

	// RangeIncremental fetches the days after the latest stored date.
	RangeIncremental

	// RangeFullBackfill fetches the whole listed history of a ticker with
	// no stored rows.
	RangeFullBackfill
)

func (k RangeKind) String() string {
	switch k {
	case RangeUpToDate:
		return "up_to_date"
	case RangeIncremental:
		return "incremental"
	case RangeFullBackfill:
		return "full_backfill"
	default:
		return "unknown"
	}
}

// earliestHistory is used as the backfill start for tickers listed without a
// start date.
var earliestHistory = time.Date(1962, time.January, 2, 0, 0, 0, 0, time.UTC)

// DateRange is an inclusive [Start, End] range of calendar days.
type DateRange struct {
	Kind  RangeKind
	Start time.Time
	End   time.Time
}

// NeedsFetch reports whether the range requires a network call.
func (r DateRange) NeedsFetch() bool {
	return r.Kind != RangeUpToDate
}

func (r DateRange) String() string {
	if !r.NeedsFetch() {
		return r.Kind.String()
	}
	return fmt.Sprintf("%s [%s, %s]", r.Kind, models.FormatDay(r.Start), models.FormatDay(r.End))
}

// RangeFor decides the date range to fetch for t.
//
// latest is the ticker's latest stored date and is only meaningful when
// hasLatest is true. refEnd is the reference end date of the run. All dates
// are compared at day precision.
//
//   - no stored rows: full backfill from t.StartDate to min(t.EndDate, refEnd);
//     a zero EndDate is open-ended, and an empty window is up to date
//   - latest < refEnd: incremental from latest+1 to refEnd
//   - otherwise: up to date
func RangeFor(t models.Ticker, latest time.Time, hasLatest bool, refEnd time.Time) DateRange {
	refEnd = models.Day(refEnd)

	if !hasLatest {
		start := models.Day(t.StartDate)
		if t.StartDate.IsZero() {
			start = earliestHistory
		}
		end := refEnd
		if !t.EndDate.IsZero() && models.Day(t.EndDate).Before(end) {
			end = models.Day(t.EndDate)
		}
		if start.After(end) {
			return DateRange{Kind: RangeUpToDate}
		}
		return DateRange{Kind: RangeFullBackfill, Start: start, End: end}
	}

	latest = models.Day(latest)
	if latest.Before(refEnd) {
		return DateRange{Kind: RangeIncremental, Start: models.NextDay(latest), End: refEnd}
	}
	return DateRange{Kind: RangeUpToDate}
}
