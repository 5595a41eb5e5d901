// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/database"
)

// sliceSource replays rows through a single reused buffer like database/sql.
type sliceSource struct {
	rows [][]interface{}
	err  error
}

func (s *sliceSource) ScanTable(_ context.Context, _ string, fn func([]interface{}) error) error {
	if s.err != nil {
		return s.err
	}
	buf := make([]interface{}, 2)
	for _, r := range s.rows {
		copy(buf, r)
		if err := fn(buf); err != nil {
			return err
		}
	}
	return nil
}

func numberedRows(n int) [][]interface{} {
	rows := make([][]interface{}, n)
	for i := range rows {
		rows[i] = []interface{}{"SYM", int64(i)}
	}
	return rows
}

func TestCopyChunks(t *testing.T) {
	tests := []struct {
		name   string
		rows   int
		size   int
		chunks []int
	}{
		{"empty", 0, 3, nil},
		{"exact", 6, 3, []int{3, 3}},
		{"remainder", 7, 3, []int{3, 3, 1}},
		{"single chunk", 2, 10, []int{2}},
		{"zero size treated as one", 2, 0, []int{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sizes []int
			var seen []int64
			total, err := copyChunks(context.Background(), &sliceSource{rows: numberedRows(tt.rows)}, "t", 2, tt.size,
				func(chunk [][]interface{}) error {
					sizes = append(sizes, len(chunk))
					for _, r := range chunk {
						seen = append(seen, r[1].(int64))
					}
					return nil
				})
			if err != nil {
				t.Fatalf("copyChunks: %v", err)
			}
			if total != int64(tt.rows) {
				t.Errorf("total = %d, want %d", total, tt.rows)
			}
			if len(sizes) != len(tt.chunks) {
				t.Fatalf("chunks = %v, want %v", sizes, tt.chunks)
			}
			for i := range sizes {
				if sizes[i] != tt.chunks[i] {
					t.Errorf("chunk %d = %d, want %d", i, sizes[i], tt.chunks[i])
				}
			}
			// Rows must survive buffer reuse in the source.
			for i, v := range seen {
				if v != int64(i) {
					t.Fatalf("row %d = %d, buffer was aliased", i, v)
				}
			}
		})
	}
}

func TestCopyChunksErrors(t *testing.T) {
	boom := errors.New("boom")

	total, err := copyChunks(context.Background(), &sliceSource{rows: numberedRows(5)}, "t", 2, 2,
		func([][]interface{}) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("flush error = %v, want boom", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}

	_, err = copyChunks(context.Background(), &sliceSource{err: boom}, "t", 2, 2,
		func([][]interface{}) error { return nil })
	if !errors.Is(err, boom) {
		t.Errorf("source error = %v, want boom", err)
	}
}

func TestLoadTableUnknown(t *testing.T) {
	m := &Mirror{cfg: &config.MirrorConfig{Schema: "public", ChunkSize: 10}}
	_, err := m.LoadTable(context.Background(), "users")
	if !errors.Is(err, ErrUnknownTable) {
		t.Errorf("err = %v, want ErrUnknownTable", err)
	}
}

func TestDDLCoversKnownTables(t *testing.T) {
	for _, table := range database.KnownTables() {
		if _, ok := tableDDL[table]; !ok {
			t.Errorf("no DDL for %s", table)
		}
	}
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), &config.MirrorConfig{}, nil)
	if !errors.Is(err, ErrNoDSN) {
		t.Errorf("err = %v, want ErrNoDSN", err)
	}

	_, err = New(context.Background(), &config.MirrorConfig{DSN: "postgres://%zz"}, nil)
	if err == nil {
		t.Error("expected parse error for malformed DSN")
	}
}
