// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package database

import (
	"math"
	"os"
	"testing"
	"time"

	"github.com/tomtom215/eodsync/internal/models"
)

// Test assertion helpers use a "check" prefix and t.Helper() so failures
// point at the calling line.

// checkNoError fails the test if err is not nil
func checkNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// checkError fails the test if err is nil
func checkError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// checkStringEqual checks that got equals want
func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", fieldName, want, got)
	}
}

// checkIntEqual checks that got equals want
func checkIntEqual(t *testing.T, fieldName string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

// checkInt64Equal checks that got equals want
func checkInt64Equal(t *testing.T, fieldName string, got, want int64) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

// checkFloatEqual compares floats treating NaN as equal to NaN
func checkFloatEqual(t *testing.T, fieldName string, got, want float64) {
	t.Helper()
	if math.IsNaN(want) && math.IsNaN(got) {
		return
	}
	if got != want {
		t.Errorf("%s: expected %v, got %v", fieldName, want, got)
	}
}

// checkDayEqual compares two dates at day precision
func checkDayEqual(t *testing.T, fieldName string, got, want time.Time) {
	t.Helper()
	if !models.Day(got).Equal(models.Day(want)) {
		t.Errorf("%s: expected %s, got %s", fieldName, models.FormatDay(want), models.FormatDay(got))
	}
}

// checkRowsEqual compares stored rows field by field, NaN-aware
func checkRowsEqual(t *testing.T, got, want []models.PriceRow) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("row count: expected %d, got %d", len(want), len(got))
	}
	for i := range want {
		g, w := got[i], want[i]
		checkStringEqual(t, "symbol", g.Symbol, w.Symbol)
		checkDayEqual(t, "date", g.Date, w.Date)
		gv, wv := g.Values(), w.Values()
		for j, col := range models.PriceValueColumns {
			switch wantV := wv[j].(type) {
			case float64:
				checkFloatEqual(t, col, gv[j].(float64), wantV)
			case int64:
				checkInt64Equal(t, col, gv[j].(int64), wantV)
			}
		}
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// recordSpec is a compact (date, close) pair for building test records.
type recordSpec struct {
	date  string
	close float64
}

type recordSpecs []recordSpec

func (specs recordSpecs) records() []models.PriceRecord {
	out := make([]models.PriceRecord, 0, len(specs))
	for _, s := range specs {
		d, err := models.ParseDay(s.date)
		if err != nil {
			panic(err)
		}
		out = append(out, models.PriceRecord{
			Date:     d,
			Close:    models.Float64(s.close),
			AdjClose: models.Float64(s.close),
			Volume:   models.Int64(1000),
		})
	}
	return out
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}
