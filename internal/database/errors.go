// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package database

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tomtom215/eodsync/internal/logging"
)

// ErrConnection marks a failure to open or initialize the store.
// Nothing downstream can proceed without it, so callers abort the run.
var ErrConnection = errors.New("database connection failed")

// StorageError is a failed write. The transaction was rolled back and no
// rows from the call were committed.
type StorageError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *StorageError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// closeWithLog closes a resource and logs any error.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this for cleanup in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// rollbackQuietly rolls back tx; the error path already carries the cause.
func rollbackQuietly(tx interface{ Rollback() error }) {
	_ = tx.Rollback()
}

// isTransactionConflict checks if an error is a DuckDB transaction conflict.
// DuckDB reports these only as text.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "Conflict on update")
}
