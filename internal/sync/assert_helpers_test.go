// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/eodsync/internal/models"
)

// Test assertion helpers with "check" prefix to avoid conflicts with existing helpers.
// Using t.Helper() ensures error messages point to the calling line.

// checkStringEqual checks that got equals want, failing if not
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

// checkErrorContains checks that err is not nil and contains substr
func checkErrorContains(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("expected error containing %q, got %q", substr, err.Error())
	}
}

// checkTrue checks that condition is true
func checkTrue(t *testing.T, description string, condition bool) {
	t.Helper()
	if !condition {
		t.Errorf("expected %s to be true", description)
	}
}

// checkDayEqual compares two dates at day precision
func checkDayEqual(t *testing.T, fieldName string, got, want time.Time) {
	t.Helper()
	if !models.Day(got).Equal(models.Day(want)) {
		t.Errorf("%s: expected %s, got %s", fieldName, models.FormatDay(want), models.FormatDay(got))
	}
}

// checkSet compares a SymbolSet with the expected members
func checkSet(t *testing.T, name string, got SymbolSet, want ...string) {
	t.Helper()
	if got.Len() != len(want) {
		t.Errorf("%s: expected %v, got %v", name, want, got.Sorted())
		return
	}
	for _, sym := range want {
		if !got.Has(sym) {
			t.Errorf("%s: missing %s (got %v)", name, sym, got.Sorted())
		}
	}
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}
