// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/eodsync/internal/api"
	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/mirror"
	"github.com/tomtom215/eodsync/internal/supervisor"
	"github.com/tomtom215/eodsync/internal/supervisor/services"
	"github.com/tomtom215/eodsync/internal/sync"
)

// ledgerMaintenanceInterval is how often serve mode prunes the ledger.
const ledgerMaintenanceInterval = 6 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync scheduler and status API",
	Long: `Run syncs every SYNC_INTERVAL under a supervisor tree and serve the status
API on HTTP_HOST:HTTP_PORT:

  GET  /healthz
  GET  /metrics
  GET  /api/v1/sync/status
  POST /api/v1/sync/trigger
  GET  /api/v1/failures`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func listenAddr(sc *config.ServerConfig) string {
	return net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port))
}

//nolint:gocyclo // sequential setup steps
func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Dur("interval", cfg.Sync.Interval).
		Bool("ledger", cfg.Ledger.Enabled).
		Bool("mirror", cfg.Mirror.Enabled).
		Msg("Starting eodsync with supervisor tree")

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger(led)

	engine, err := newEngine(cfg, db, led)
	if err != nil {
		return err
	}
	manager := sync.NewManager(engine, db, &cfg.Sync)

	if cfg.Mirror.Enabled {
		m, err := mirror.New(ctx, &cfg.Mirror, db)
		if err != nil {
			return fmt.Errorf("failed to connect mirror: %w", err)
		}
		defer m.Close()
		manager.SetMirror(m)
	}

	// A nil *ledger.Ledger must not become a non-nil interface.
	var failures api.FailureLister
	if led != nil {
		failures = led
	}
	router := api.NewRouter(ctx, manager, db, failures)

	server := &http.Server{
		Addr:              listenAddr(&cfg.Server),
		Handler:           router.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(slog.New(logging.NewSlogHandler()), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create supervisor tree: %w", err)
	}

	if led != nil {
		tree.AddDataService(services.NewLedgerMaintenanceService(led, cfg.Ledger.Retention, ledgerMaintenanceInterval))
	}
	tree.AddSyncService(services.NewSyncService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree exited: %w", err)
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("Services did not stop within the shutdown timeout")
	}
	logging.Info().Msg("eodsync stopped")
	return nil
}
