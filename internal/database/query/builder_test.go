// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package query

import (
	"testing"
	"time"
)

func TestWhereBuilder_Empty(t *testing.T) {
	wb := NewWhereBuilder()

	if !wb.IsEmpty() {
		t.Error("Expected new builder to be empty")
	}
	clause, args := wb.Build()
	if clause != "1=1" {
		t.Errorf("Build() clause = %q, want 1=1", clause)
	}
	if len(args) != 0 {
		t.Errorf("Build() args = %v, want none", args)
	}
}

func TestWhereBuilder_Combined(t *testing.T) {
	since := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	wb := NewWhereBuilder().
		AddIn("symbol", []string{"AAPL", "MSFT"}).
		AddIn("exchange", nil).
		AddDateRange("date", &since, nil).
		AddClause("close > ?", 0)

	clause, args := wb.BuildWithPrefix()
	want := "WHERE symbol IN (?, ?) AND date >= ? AND close > ?"
	if clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 4 {
		t.Fatalf("len(args) = %d, want 4", len(args))
	}
	if args[0] != "AAPL" || args[1] != "MSFT" {
		t.Errorf("IN args = %v", args[:2])
	}
	if got, ok := args[2].(time.Time); !ok || !got.Equal(since) {
		t.Errorf("date arg = %v", args[2])
	}
	if wb.Count() != 3 {
		t.Errorf("Count() = %d, want 3", wb.Count())
	}
}

func TestValuesRows(t *testing.T) {
	tests := []struct {
		rows, width int
		want        string
	}{
		{0, 3, ""},
		{1, 1, "(?)"},
		{2, 3, "(?, ?, ?), (?, ?, ?)"},
	}
	for _, tt := range tests {
		if got := ValuesRows(tt.rows, tt.width); got != tt.want {
			t.Errorf("ValuesRows(%d, %d) = %q, want %q", tt.rows, tt.width, got, tt.want)
		}
	}
}
