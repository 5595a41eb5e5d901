// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package sync

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoData is returned when the data source has no records in the requested
// range. It is not a failure.
var ErrNoData = errors.New("no data in requested range")

// ErrReferenceUnavailable is returned when the reference end date cannot be
// resolved. It aborts the run before any ticker is processed.
var ErrReferenceUnavailable = errors.New("reference end date unavailable")

// FetchErrorKind separates retryable from terminal fetch failures.
type FetchErrorKind int

const (
	// FetchTransient covers rate limiting, server errors and transport
	// failures. The client retries these internally.
	FetchTransient FetchErrorKind = iota + 1

	// FetchFatal is terminal for one ticker in one run.
	FetchFatal
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTransient:
		return "transient"
	case FetchFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// FetchError is a classified data source failure.
type FetchError struct {
	Kind       FetchErrorKind
	Symbol     string
	StatusCode int           // 0 for transport failures
	RetryAfter time.Duration // server hint, 0 if absent
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (%s, HTTP %d): %v", e.Symbol, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Symbol, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable FetchError.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchTransient
}

// IsFatal reports whether err is a terminal FetchError.
func IsFatal(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchFatal
}

func transientError(symbol string, status int, err error) *FetchError {
	return &FetchError{Kind: FetchTransient, Symbol: symbol, StatusCode: status, Err: err}
}

func fatalError(symbol string, status int, err error) *FetchError {
	return &FetchError{Kind: FetchFatal, Symbol: symbol, StatusCode: status, Err: err}
}
