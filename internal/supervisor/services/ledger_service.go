// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/eodsync/internal/logging"
)

// LedgerMaintainer is the maintenance surface of *ledger.Ledger.
type LedgerMaintainer interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	RunGC() error
}

// LedgerMaintenanceService periodically drops failure entries older than
// the retention window and reclaims BadgerDB value log space.
type LedgerMaintenanceService struct {
	ledger    LedgerMaintainer
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	name      string
}

// NewLedgerMaintenanceService creates the maintenance loop. A zero
// retention disables pruning; GC still runs.
func NewLedgerMaintenanceService(l LedgerMaintainer, retention, interval time.Duration) *LedgerMaintenanceService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &LedgerMaintenanceService{
		ledger:    l,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		name:      "ledger-maintenance",
	}
}

// Serve implements suture.Service. Errors are logged and retried on the
// next tick rather than restarting the service.
func (s *LedgerMaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *LedgerMaintenanceService) runOnce(ctx context.Context) {
	if s.retention > 0 {
		n, err := s.ledger.Prune(ctx, s.now().Add(-s.retention))
		if err != nil {
			logging.Warn().Err(err).Msg("Failure ledger prune failed")
		} else if n > 0 {
			logging.Info().Int("pruned", n).Msg("Pruned stale failure ledger entries")
		}
	}
	if err := s.ledger.RunGC(); err != nil {
		logging.Warn().Err(err).Msg("Failure ledger GC failed")
	}
}

// String implements fmt.Stringer for suture log messages.
func (s *LedgerMaintenanceService) String() string {
	return s.name
}
