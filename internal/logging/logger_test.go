// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if idx := strings.LastIndex(line, "\n"); idx >= 0 {
		line = line[idx+1:]
	}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", line, err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: true, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Str("symbol", "AAPL").Int("rows", 3).Msg("Upserted prices")

	m := decodeLine(t, &buf)
	if m["message"] != "Upserted prices" {
		t.Errorf("message = %v", m["message"])
	}
	if m["symbol"] != "AAPL" {
		t.Errorf("symbol = %v", m["symbol"])
	}
	if _, ok := m["time"]; !ok {
		t.Error("expected time field")
	}
}

func TestInitWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eodsync.log")

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "console", Output: &buf, File: path, MaxSizeMB: 1})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Warn().Str("symbol", "MSFT").Msg("Symbol moved to missing")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"symbol":"MSFT"`) {
		t.Errorf("log file should hold JSON, got %q", data)
	}
	if !strings.Contains(buf.String(), "MSFT") {
		t.Errorf("console output missing entry: %q", buf.String())
	}
}

func TestCtxAddsRunID(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRunID(ctx, "abc12345")

	Ctx(ctx).Info().Msg("Batch complete")

	m := decodeLine(t, &buf)
	if m["run_id"] != "abc12345" {
		t.Errorf("run_id = %v, want abc12345", m["run_id"])
	}
}

func TestGenerateRunID(t *testing.T) {
	a, b := GenerateRunID(), GenerateRunID()
	if len(a) != 8 {
		t.Errorf("len = %d, want 8", len(a))
	}
	if a == b {
		t.Error("run IDs should differ")
	}
	if RunIDFromContext(context.Background()) != "" {
		t.Error("empty context should have no run ID")
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf)))

	logger.WithGroup("breaker").With("name", "tiingo").
		Warn("state change", "to", "open", "err", errors.New("boom"))

	m := decodeLine(t, &buf)
	if m["level"] != "warn" {
		t.Errorf("level = %v, want warn", m["level"])
	}
	if m["breaker.name"] != "tiingo" || m["breaker.to"] != "open" {
		t.Errorf("grouped attrs missing: %v", m)
	}
	if m["breaker.err"] != "boom" {
		t.Errorf("error attr = %v", m["breaker.err"])
	}
}
