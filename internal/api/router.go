// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/eodsync/internal/ledger"
	"github.com/tomtom215/eodsync/internal/middleware"
	"github.com/tomtom215/eodsync/internal/models"
)

// requestTimeout bounds every API handler.
const requestTimeout = 30 * time.Second

// SyncController is the part of sync.Manager the API drives.
type SyncController interface {
	Status() models.SyncStatus
	TriggerAsync(ctx context.Context) error
}

// Pinger checks storage connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FailureLister lists failure ledger entries.
type FailureLister interface {
	List(ctx context.Context) ([]ledger.Entry, error)
}

// Router wires handlers to routes.
type Router struct {
	handler *Handler
}

// NewRouter creates a router. runCtx outlives individual requests and is
// the context triggered runs execute under. failures may be nil.
func NewRouter(runCtx context.Context, ctl SyncController, db Pinger, failures FailureLister) *Router {
	return &Router{handler: NewHandler(runCtx, ctl, db, failures)}
}

// Handler returns the chi router.
func (router *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/healthz", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sync/status", router.handler.SyncStatus)
		r.Post("/sync/trigger", router.handler.TriggerSync)
		r.Get("/failures", router.handler.Failures)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}
