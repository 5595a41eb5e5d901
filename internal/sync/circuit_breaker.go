// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/metrics"
	"github.com/tomtom215/eodsync/internal/models"
)

// CircuitBreakerFetcher wraps a Fetcher with the circuit breaker pattern.
//
// The breaker sits outside the retry loop: one logical fetch, retries
// included, is one breaker request. ErrNoData and caller cancellation count
// as successes so an exhausted universe or a shutdown never trips it.
// Rejections while open are reported as FetchFatal for the ticker.
//
// DETERMINISM NOTE: gobreaker uses real time for its interval and timeout.
// Tests exercise the wrapped fetcher directly or use short timeouts.
type CircuitBreakerFetcher struct {
	fetcher Fetcher
	cb      *gobreaker.CircuitBreaker[[]models.PriceRecord]
	name    string
}

// NewCircuitBreakerFetcher wraps f. Configuration:
//   - opens after breaker_failure_threshold consecutive failures
//   - stays open for breaker_open_timeout, then half-opens
//   - allows 3 probe requests while half-open
func NewCircuitBreakerFetcher(f Fetcher, cfg *config.TiingoConfig) *CircuitBreakerFetcher {
	cbName := "tiingo-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 20
	}

	cb := gobreaker.NewCircuitBreaker[[]models.PriceRecord](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= threshold
			if shouldTrip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNoData) ||
				errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &CircuitBreakerFetcher{
		fetcher: f,
		cb:      cb,
		name:    cbName,
	}
}

// Fetch implements Fetcher with circuit breaker protection.
func (cbf *CircuitBreakerFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceRecord, error) {
	records, err := cbf.cb.Execute(func() ([]models.PriceRecord, error) {
		return cbf.fetcher.Fetch(ctx, symbol, start, end)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbf.name, "rejected").Inc()
			logging.Ctx(ctx).Debug().Str("symbol", symbol).Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, fatalError(symbol, 0, err)
		}
		if errors.Is(err, ErrNoData) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbf.name, "success").Inc()
			return nil, err
		}

		metrics.CircuitBreakerRequests.WithLabelValues(cbf.name, "failure").Inc()
		counts := cbf.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbf.name).Set(float64(counts.ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbf.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbf.name).Set(0)
	return records, nil
}

// State returns the current breaker state.
func (cbf *CircuitBreakerFetcher) State() gobreaker.State {
	return cbf.cb.State()
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
