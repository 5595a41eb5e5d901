// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
Package supervisor provides process supervision for serve mode using suture v4.

The supervisor tree organizes services into three layers for failure isolation:

	RootSupervisor ("eodsync")
	├── DataSupervisor ("data-layer")
	│   └── LedgerMaintenanceService (if the failure ledger is enabled)
	├── SyncSupervisor ("sync-layer")
	│   └── SyncService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with backoff. Context cancellation stops the
tree; each service gets ShutdownTimeout to return, and a running sync uses
that window to finish its in-flight tickers.

Supervisor events are logged through sutureslog, fed by the zerolog-backed
slog handler from the logging package:

	logger := slog.New(logging.NewSlogHandler())
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddSyncService(services.NewSyncService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)
*/
package supervisor
