// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/models"
	"github.com/tomtom215/eodsync/internal/sync"
)

// Handler holds the dependencies of the API handlers.
type Handler struct {
	runCtx    context.Context
	sync      SyncController
	db        Pinger
	failures  FailureLister
	startTime time.Time
}

// NewHandler creates the API handlers.
func NewHandler(runCtx context.Context, ctl SyncController, db Pinger, failures FailureLister) *Handler {
	return &Handler{
		runCtx:    runCtx,
		sync:      ctl,
		db:        db,
		failures:  failures,
		startTime: time.Now(),
	}
}

// HealthStatus is the payload of GET /healthz.
type HealthStatus struct {
	Status            string     `json:"status"` // healthy or degraded
	DatabaseConnected bool       `json:"database_connected"`
	SyncRunning       bool       `json:"sync_running"`
	LastSyncTime      *time.Time `json:"last_sync_time,omitempty"`
	UptimeSeconds     float64    `json:"uptime_seconds"`
}

// Health reports liveness and database connectivity. A failed ping
// answers 503 so load balancers can act on it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	health := HealthStatus{
		Status:            "healthy",
		DatabaseConnected: dbConnected,
		UptimeSeconds:     time.Since(h.startTime).Seconds(),
	}
	if h.sync != nil {
		st := h.sync.Status()
		health.SyncRunning = st.Running
		health.LastSyncTime = st.LastSyncTime
	}

	status := http.StatusOK
	if !dbConnected {
		health.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, success(health))
}

// SyncStatus handles GET /api/v1/sync/status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, success(h.sync.Status()))
}

// TriggerResponse is the payload of POST /api/v1/sync/trigger.
type TriggerResponse struct {
	Message string `json:"message"`
}

// TriggerSync handles POST /api/v1/sync/trigger. The run continues after
// the response is written and is not tied to the request context.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	err := h.sync.TriggerAsync(h.runCtx)
	switch {
	case errors.Is(err, sync.ErrSyncInProgress):
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", "A sync is already running", nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "SYNC_ERROR", "Failed to start sync", err)
		return
	}

	logging.Ctx(r.Context()).Info().Msg("Sync triggered via API")
	respondJSON(w, http.StatusAccepted, success(TriggerResponse{Message: "Sync started"}))
}

// Failures handles GET /api/v1/failures.
func (h *Handler) Failures(w http.ResponseWriter, r *http.Request) {
	if h.failures == nil {
		respondError(w, http.StatusNotFound, "LEDGER_DISABLED", "Failure ledger is not enabled", nil)
		return
	}

	entries, err := h.failures.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LEDGER_ERROR", "Failed to read failure ledger", err)
		return
	}
	respondJSON(w, http.StatusOK, success(entries))
}

func success(data interface{}) *models.APIResponse {
	return &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now()},
	}
}
