// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/eodsync/internal/config"
)

func breakerConfig(threshold uint32, openFor time.Duration) *config.TiingoConfig {
	return &config.TiingoConfig{
		BreakerFailureThreshold: threshold,
		BreakerOpenTimeout:      openFor,
	}
}

func TestCircuitBreakerFetcher_PassesThrough(t *testing.T) {
	inner := newFakeFetcher()
	cbf := NewCircuitBreakerFetcher(inner, breakerConfig(3, time.Minute))

	recs, err := cbf.Fetch(context.Background(), "MSFT", day(t, "2023-06-02"), day(t, "2023-06-05"))
	checkNoError(t, err)
	checkIntEqual(t, "records", len(recs), 2) // Fri + Mon
	checkTrue(t, "closed", cbf.State() == gobreaker.StateClosed)
}

func TestCircuitBreakerFetcher_OpensAfterThreshold(t *testing.T) {
	inner := newFakeFetcher()
	inner.errs["BAD"] = fatalError("BAD", 500, errBoom)
	cbf := NewCircuitBreakerFetcher(inner, breakerConfig(3, time.Minute))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := cbf.Fetch(ctx, "BAD", day(t, "2023-06-02"), day(t, "2023-06-05"))
		checkTrue(t, "underlying error returned", errors.Is(err, errBoom))
	}
	checkTrue(t, "open", cbf.State() == gobreaker.StateOpen)

	calls := inner.callCount()
	_, err := cbf.Fetch(ctx, "MSFT", day(t, "2023-06-02"), day(t, "2023-06-05"))
	checkTrue(t, "rejection is fatal", IsFatal(err))
	checkTrue(t, "rejection wraps ErrOpenState", errors.Is(err, gobreaker.ErrOpenState))
	checkIntEqual(t, "no call while open", inner.callCount(), calls)
}

func TestCircuitBreakerFetcher_NoDataDoesNotTrip(t *testing.T) {
	inner := newFakeFetcher()
	inner.empty["EMPTY"] = true
	cbf := NewCircuitBreakerFetcher(inner, breakerConfig(2, time.Minute))

	for i := 0; i < 5; i++ {
		_, err := cbf.Fetch(context.Background(), "EMPTY", day(t, "2023-06-02"), day(t, "2023-06-05"))
		checkTrue(t, "no data", errors.Is(err, ErrNoData))
	}
	checkTrue(t, "still closed", cbf.State() == gobreaker.StateClosed)
}

func TestCircuitBreakerFetcher_HalfOpenRecovers(t *testing.T) {
	inner := newFakeFetcher()
	inner.errs["BAD"] = fatalError("BAD", 500, errBoom)
	cbf := NewCircuitBreakerFetcher(inner, breakerConfig(1, 50*time.Millisecond))

	ctx := context.Background()
	_, _ = cbf.Fetch(ctx, "BAD", day(t, "2023-06-02"), day(t, "2023-06-05"))
	checkTrue(t, "open", cbf.State() == gobreaker.StateOpen)

	time.Sleep(80 * time.Millisecond)
	checkTrue(t, "half-open", cbf.State() == gobreaker.StateHalfOpen)

	for i := 0; i < 3; i++ {
		_, err := cbf.Fetch(ctx, "MSFT", day(t, "2023-06-02"), day(t, "2023-06-05"))
		checkNoError(t, err)
	}
	checkTrue(t, "closed again", cbf.State() == gobreaker.StateClosed)
}

func TestStateConversions(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		num   float64
		str   string
	}{
		{gobreaker.StateClosed, 0, "closed"},
		{gobreaker.StateHalfOpen, 1, "half-open"},
		{gobreaker.StateOpen, 2, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			if got := stateToFloat(tt.state); got != tt.num {
				t.Errorf("stateToFloat = %v, want %v", got, tt.num)
			}
			checkStringEqual(t, "stateToString", stateToString(tt.state), tt.str)
		})
	}
}
