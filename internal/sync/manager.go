// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
manager.go - Sync Manager Lifecycle and Orchestration

The Manager runs the Engine periodically in serve mode.

Lifecycle Methods:
  - NewManager(): wire engine, ticker source and configuration
  - Start(): begin the periodic loop (and an initial run if configured)
  - Stop(): stop the loop, shut the active run down gracefully, wait
  - TriggerSync(): run now on the calling goroutine (mutex-protected)
  - TriggerAsync(): start a run in the background unless one is active
  - Status(): running flag, last/next run times and the last summary

Thread Safety:
  - syncMu: prevents concurrent runs
  - mu: protects running, lastSync, lastResult, lastErr, nextSync
  - every background goroutine is tracked by wg for Stop()
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/models"
)

// TickerSource lists the universe for a run.
type TickerSource interface {
	ListTickers(ctx context.Context, filter models.TickerFilter) ([]models.Ticker, error)
}

// Mirrorer copies the store downstream after a successful run.
type Mirrorer interface {
	MirrorAll(ctx context.Context) error
}

// ErrSyncInProgress is returned by TriggerAsync while a run is active.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrManagerStopped is returned for a run that Stop preempted before any
// ticker was listed.
var ErrManagerStopped = errors.New("sync manager stopped")

// defaultDrainTimeout applies when SyncConfig.DrainTimeout is unset.
const defaultDrainTimeout = 25 * time.Second

// Manager orchestrates periodic synchronization.
type Manager struct {
	engine *Engine
	source TickerSource
	cfg    *config.SyncConfig
	mirror Mirrorer // optional

	lastSync        time.Time
	nextSync        time.Time
	lastResult      *Result
	lastErr         error
	running         bool
	mu              sync.RWMutex
	syncMu          sync.Mutex
	stopChan        chan struct{}
	runCtx          context.Context // canceled only when a drain times out
	abortRuns       context.CancelFunc
	wg              sync.WaitGroup
	onSyncCompleted func(res *Result)
}

// NewManager creates a sync manager.
func NewManager(engine *Engine, source TickerSource, cfg *config.SyncConfig) *Manager {
	logging.Info().
		Int("concurrency", cfg.Concurrency).
		Int("batch_size", cfg.BatchSize).
		Bool("add_missing", cfg.AddMissing).
		Dur("interval", cfg.Interval).
		Msg("Sync manager config loaded")

	runCtx, abortRuns := context.WithCancel(context.Background())
	return &Manager{
		engine:    engine,
		source:    source,
		cfg:       cfg,
		stopChan:  make(chan struct{}),
		runCtx:    runCtx,
		abortRuns: abortRuns,
	}
}

// SetMirror enables the post-sync mirror.
func (m *Manager) SetMirror(mirror Mirrorer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirror = mirror
}

// SetOnSyncCompleted sets a callback invoked after each finished run.
func (m *Manager) SetOnSyncCompleted(callback func(res *Result)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSyncCompleted = callback
}

// Start begins the periodic synchronization process. Runs keep ctx's values
// but not its cancellation: once ctx is done no new run is scheduled, and
// only Stop ends the active one.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.runCtx, m.abortRuns = context.WithCancel(context.WithoutCancel(ctx))
	runCtx := m.runCtx
	m.mu.Unlock()

	logging.Info().Msg("Starting sync manager...")

	if m.cfg.RunOnStartup {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if _, err := m.TriggerSync(runCtx); err != nil {
				logging.Warn().Err(err).Msg("Initial sync failed (will retry)")
			}
		}()
	}

	if m.cfg.Interval > 0 {
		m.wg.Add(1)
		go m.syncLoop(ctx, runCtx)
	} else {
		logging.Info().Msg("Periodic sync disabled (SYNC_INTERVAL=0), manual triggers only")
	}

	return nil
}

// Stop gracefully stops the synchronization process. A run that has not
// reached the engine yet is skipped; an active one drains its in-flight
// tickers. If draining exceeds the drain timeout, in-flight calls are
// canceled and those tickers reported unprocessed.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	close(m.stopChan)
	abortRuns := m.abortRuns
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")

	m.engine.Shutdown()

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(drained)
	}()

	timeout := m.cfg.DrainTimeout
	if timeout <= 0 {
		timeout = defaultDrainTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-drained:
	case <-timer.C:
		logging.Warn().Dur("drain_timeout", timeout).Msg("Sync did not drain in time, canceling in-flight requests")
		abortRuns()
		<-drained
	}
	abortRuns()

	logging.Info().Msg("Sync manager stopped")
	return nil
}

func (m *Manager) syncLoop(ctx, runCtx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	m.setNextSync(time.Now().Add(m.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.setNextSync(time.Now().Add(m.cfg.Interval))
			if _, err := m.TriggerSync(runCtx); err != nil {
				logging.Error().Err(err).Msg("Sync failed")
			}
		}
	}
}

// TriggerSync runs a sync over the configured universe and waits for it.
func (m *Manager) TriggerSync(ctx context.Context) (*Result, error) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	return m.syncData(ctx)
}

// TriggerAsync starts a sync in the background. It returns
// ErrSyncInProgress when a run is already active. The run belongs to the
// manager: it outlives ctx's cancellation and is ended by Stop.
func (m *Manager) TriggerAsync(ctx context.Context) error {
	if !m.syncMu.TryLock() {
		return ErrSyncInProgress
	}

	m.mu.RLock()
	runCtx := m.runCtx
	m.mu.RUnlock()
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	release := context.AfterFunc(runCtx, cancel)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.syncMu.Unlock()
		defer cancel()
		defer release()
		if _, err := m.syncData(ctx); err != nil {
			logging.Error().Err(err).Msg("Triggered sync failed")
		}
	}()
	return nil
}

// syncData runs one sync. syncMu must be held by the caller.
func (m *Manager) syncData(ctx context.Context) (*Result, error) {
	ctx = logging.ContextWithNewRunID(ctx)

	m.mu.RLock()
	stop := m.stopChan
	m.mu.RUnlock()
	if isClosed(stop) {
		return nil, ErrManagerStopped
	}

	tickers, err := m.source.ListTickers(ctx, models.TickerFilter{
		AssetTypes: m.cfg.AssetTypes,
		Exchanges:  m.cfg.Exchanges,
	})
	if err != nil {
		err = fmt.Errorf("failed to list tickers: %w", err)
		m.recordRun(nil, err)
		return nil, err
	}

	if isClosed(stop) {
		res := newResult(logging.RunIDFromContext(ctx), time.Time{})
		res.markUnprocessed(symbolsOf(tickers)...)
		res.finish()
		logging.Ctx(ctx).Info().Int("unprocessed", len(tickers)).Msg("Sync skipped, manager stopping")
		m.recordRun(res, nil)
		return res, nil
	}

	opts := OptionsFromConfig(m.cfg)
	opts.Stop = stop
	var res *Result
	if m.cfg.Sequential {
		res, err = m.engine.SyncSequential(ctx, tickers, opts)
	} else {
		res, err = m.engine.Sync(ctx, tickers, opts)
	}
	m.recordRun(res, err)
	if err != nil {
		return res, err
	}

	m.mu.RLock()
	mirror := m.mirror
	m.mu.RUnlock()
	if mirror != nil && m.cfg.MirrorAfterSync && !res.Stopped() {
		if err := mirror.MirrorAll(ctx); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Post-sync mirror failed")
		}
	}

	return res, nil
}

func (m *Manager) recordRun(res *Result, err error) {
	m.mu.Lock()
	if res != nil {
		m.lastResult = res
	}
	m.lastErr = err
	if err == nil {
		m.lastSync = time.Now()
	}
	callback := m.onSyncCompleted
	m.mu.Unlock()

	if callback != nil && res != nil {
		callback(res)
	}
}

func (m *Manager) setNextSync(t time.Time) {
	m.mu.Lock()
	m.nextSync = t
	m.mu.Unlock()
}

// LastSyncTime returns the timestamp of the last successful sync.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

// LastResult returns the result of the most recent run, or nil.
func (m *Manager) LastResult() *Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastResult
}

// Status returns a snapshot for the status API.
func (m *Manager) Status() models.SyncStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := models.SyncStatus{Running: m.engine.Running()}
	if !m.lastSync.IsZero() {
		t := m.lastSync
		status.LastSyncTime = &t
	}
	if !m.nextSync.IsZero() {
		t := m.nextSync
		status.NextSyncTime = &t
	}
	if m.lastResult != nil {
		s := m.lastResult.Summary()
		status.LastSummary = &s
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status
}
