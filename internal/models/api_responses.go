// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package models

import (
	"time"
)

// APIResponse is the envelope returned by every status API endpoint.
//
//	{
//	  "status": "success",
//	  "data": {"running": false, "last_result": {...}},
//	  "metadata": {"timestamp": "2026-01-05T22:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a machine-readable error code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SyncStatus is the payload of GET /api/v1/sync/status.
type SyncStatus struct {
	Running      bool         `json:"running"`
	LastSyncTime *time.Time   `json:"last_sync_time,omitempty"`
	NextSyncTime *time.Time   `json:"next_sync_time,omitempty"`
	LastSummary  *SyncSummary `json:"last_summary,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
}

// SyncSummary is the reportable shape of one finished sync run.
type SyncSummary struct {
	RunID        string        `json:"run_id"`
	ReferenceEnd string        `json:"reference_end"`
	Updated      int           `json:"updated"`
	Missing      int           `json:"missing"`
	NoNewData    int           `json:"no_new_data"`
	Errors       int           `json:"errors"`
	Unprocessed  int           `json:"unprocessed"`
	RowsWritten  int64         `json:"rows_written"`
	Duration     time.Duration `json:"duration_ns"`
	ErrorSymbols []string      `json:"error_symbols,omitempty"`
}
