// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

// Package testinfra provides test infrastructure for integration testing with containers.
//
// This package uses testcontainers-go to run a real PostgreSQL server for the
// mirror tests. Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/mirror/...
//
// # PostgreSQL Container
//
//	func TestMirror(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//
//	    m, err := mirror.New(ctx, &config.MirrorConfig{DSN: pg.DSN, ...}, db)
//	}
//
// # CI Considerations
//
// These tests require Docker. They are skipped when the daemon is not
// reachable, and the first run pulls the postgres image.
package testinfra
