// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/models"
)

// ReferenceResolver finds the reference end date of a run: the latest day
// for which a liquid calendar ticker has a bar.
type ReferenceResolver struct {
	fetcher  Fetcher
	ticker   string
	lookback time.Duration
}

// NewReferenceResolver creates a resolver that looks back over lookback
// days of ticker.
func NewReferenceResolver(f Fetcher, ticker string, lookback time.Duration) *ReferenceResolver {
	if lookback <= 0 {
		lookback = 14 * 24 * time.Hour
	}
	return &ReferenceResolver{
		fetcher:  f,
		ticker:   models.NormalizeSymbol(ticker),
		lookback: lookback,
	}
}

// Resolve returns the reference end date as of now.
//
// An empty calendar window falls back to yesterday (UTC). Any other fetch
// failure wraps ErrReferenceUnavailable.
func (r *ReferenceResolver) Resolve(ctx context.Context, now time.Time) (time.Time, error) {
	today := models.Day(now.UTC())
	start := today.Add(-r.lookback)

	records, err := r.fetcher.Fetch(ctx, r.ticker, start, today)
	if errors.Is(err, ErrNoData) {
		fallback := today.AddDate(0, 0, -1)
		logging.Ctx(ctx).Warn().
			Str("calendar_ticker", r.ticker).
			Str("reference_end", models.FormatDay(fallback)).
			Msg("Calendar ticker returned no data, falling back to yesterday")
		return fallback, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: calendar ticker %s: %w", ErrReferenceUnavailable, r.ticker, err)
	}

	var latest time.Time
	for _, rec := range records {
		if d := models.Day(rec.Date); d.After(latest) {
			latest = d
		}
	}
	if latest.IsZero() {
		return today.AddDate(0, 0, -1), nil
	}
	return latest, nil
}
