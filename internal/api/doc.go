// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
Package api provides the HTTP status API for serve mode, routed with chi.

Endpoints:

	GET  /healthz                 liveness plus a database ping
	GET  /api/v1/sync/status      running flag, last and next run, last summary
	POST /api/v1/sync/trigger     start a run in the background (409 while one is active)
	GET  /api/v1/failures         failure ledger entries (404 when the ledger is off)
	GET  /metrics                 Prometheus exposition

Every JSON response uses the models.APIResponse envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}

The API has no authentication and binds to 127.0.0.1 by default; put a
reverse proxy in front of it before exposing it.
*/
package api
