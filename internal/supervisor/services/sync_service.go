// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/eodsync/internal/logging"
)

// StartStopManager is the lifecycle of *sync.Manager.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService runs the periodic sync manager under supervision.
//
// Stop shuts down an active run gracefully: in-flight tickers finish and
// are written, the rest are reported unprocessed. The manager's runs do not
// inherit the cancellation of the ctx passed to Start, so the drain still
// happens after suture cancels ctx; only the drain timeout aborts them.
type SyncService struct {
	manager StartStopManager
	name    string
}

// NewSyncService creates a new sync service wrapper.
func NewSyncService(manager StartStopManager) *SyncService {
	return &SyncService{
		manager: manager,
		name:    "sync-manager",
	}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync manager start failed: %w", err)
	}

	<-ctx.Done()
	logging.Info().Str("service", s.name).Msg("Stopping sync manager")

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("sync manager stop failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture log messages.
func (s *SyncService) String() string {
	return s.name
}
