// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
Package services provides suture.Service wrappers for serve-mode components.

Each wrapper translates a component lifecycle into suture's context-aware
Serve(ctx) error:

  - SyncService: sync.Manager Start/Stop
  - HTTPServerService: http.Server ListenAndServe/Shutdown
  - LedgerMaintenanceService: periodic failure ledger pruning and value log GC

Returning an error from Serve makes the supervisor restart the service with
backoff; returning after ctx is canceled ends it.
*/
package services
