// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eodsync/internal/ledger"
	"github.com/tomtom215/eodsync/internal/models"
	"github.com/tomtom215/eodsync/internal/sync"
)

type fakeController struct {
	status     models.SyncStatus
	triggerErr error
	triggered  int
	ctx        context.Context
}

func (f *fakeController) Status() models.SyncStatus { return f.status }

func (f *fakeController) TriggerAsync(ctx context.Context) error {
	f.ctx = ctx
	if f.triggerErr != nil {
		return f.triggerErr
	}
	f.triggered++
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeLister struct {
	entries []ledger.Entry
	err     error
}

func (l fakeLister) List(context.Context) ([]ledger.Entry, error) { return l.entries, l.err }

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

type runCtxKey struct{}

func newTestRouter(ctl SyncController, db Pinger, failures FailureLister) (http.Handler, context.Context) {
	runCtx := context.WithValue(context.Background(), runCtxKey{}, "run")
	return NewRouter(runCtx, ctl, db, failures).Handler(), runCtx
}

func TestHealth(t *testing.T) {
	last := time.Date(2023, 6, 5, 22, 0, 0, 0, time.UTC)
	ctl := &fakeController{status: models.SyncStatus{LastSyncTime: &last}}

	tests := []struct {
		name       string
		db         Pinger
		wantCode   int
		wantStatus string
	}{
		{"healthy", fakePinger{}, http.StatusOK, "healthy"},
		{"database down", fakePinger{err: errors.New("closed")}, http.StatusServiceUnavailable, "degraded"},
		{"no database", nil, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(ctl, tt.db, nil)
			rec, env := do(t, h, http.MethodGet, "/healthz")
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var hs HealthStatus
			if err := json.Unmarshal(env.Data, &hs); err != nil {
				t.Fatal(err)
			}
			if hs.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", hs.Status, tt.wantStatus)
			}
			if hs.LastSyncTime == nil || !hs.LastSyncTime.Equal(last) {
				t.Errorf("last sync time = %v", hs.LastSyncTime)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}
}

func TestSyncStatus(t *testing.T) {
	ctl := &fakeController{status: models.SyncStatus{
		Running: true,
		LastSummary: &models.SyncSummary{
			RunID: "ab12cd34", ReferenceEnd: "2023-06-05", Updated: 3, Errors: 1,
			ErrorSymbols: []string{"BAD"},
		},
	}}
	h, _ := newTestRouter(ctl, fakePinger{}, nil)

	rec, env := do(t, h, http.MethodGet, "/api/v1/sync/status")
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("code = %d status = %s", rec.Code, env.Status)
	}
	var st models.SyncStatus
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatal(err)
	}
	if !st.Running || st.LastSummary == nil || st.LastSummary.Updated != 3 ||
		st.LastSummary.ErrorSymbols[0] != "BAD" {
		t.Errorf("status = %+v", st)
	}
}

func TestTriggerSync(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		ctl := &fakeController{}
		h, runCtx := newTestRouter(ctl, fakePinger{}, nil)
		rec, env := do(t, h, http.MethodPost, "/api/v1/sync/trigger")
		if rec.Code != http.StatusAccepted || env.Status != "success" {
			t.Fatalf("code = %d body = %s", rec.Code, rec.Body.String())
		}
		if ctl.triggered != 1 {
			t.Errorf("triggered = %d, want 1", ctl.triggered)
		}
		if ctl.ctx != runCtx {
			t.Error("run must use the long-lived context, not the request context")
		}
	})

	t.Run("conflict", func(t *testing.T) {
		ctl := &fakeController{triggerErr: sync.ErrSyncInProgress}
		h, _ := newTestRouter(ctl, fakePinger{}, nil)
		rec, env := do(t, h, http.MethodPost, "/api/v1/sync/trigger")
		if rec.Code != http.StatusConflict || env.Error == nil || env.Error.Code != "SYNC_IN_PROGRESS" {
			t.Errorf("code = %d body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("failure", func(t *testing.T) {
		ctl := &fakeController{triggerErr: errors.New("boom\nforged")}
		h, _ := newTestRouter(ctl, fakePinger{}, nil)
		rec, _ := do(t, h, http.MethodPost, "/api/v1/sync/trigger")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("code = %d", rec.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		h, _ := newTestRouter(&fakeController{}, fakePinger{}, nil)
		rec, env := do(t, h, http.MethodGet, "/api/v1/sync/trigger")
		if rec.Code != http.StatusMethodNotAllowed || env.Error == nil || env.Error.Code != "METHOD_NOT_ALLOWED" {
			t.Errorf("code = %d body = %s", rec.Code, rec.Body.String())
		}
	})
}

func TestFailures(t *testing.T) {
	seen := time.Date(2023, 6, 5, 22, 0, 0, 0, time.UTC)
	lister := fakeLister{entries: []ledger.Entry{
		{Symbol: "BAD", RunID: "ab12cd34", Kind: ledger.KindFetch, Message: "HTTP 404", StatusCode: 404,
			Attempts: 2, FirstSeen: seen, LastSeen: seen},
	}}

	h, _ := newTestRouter(&fakeController{}, fakePinger{}, lister)
	rec, env := do(t, h, http.MethodGet, "/api/v1/failures")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var got []ledger.Entry
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Symbol != "BAD" || got[0].Attempts != 2 {
		t.Errorf("entries = %+v", got)
	}

	h, _ = newTestRouter(&fakeController{}, fakePinger{}, nil)
	if rec, _ := do(t, h, http.MethodGet, "/api/v1/failures"); rec.Code != http.StatusNotFound {
		t.Errorf("disabled ledger code = %d, want 404", rec.Code)
	}

	h, _ = newTestRouter(&fakeController{}, fakePinger{}, fakeLister{err: errors.New("closed")})
	if rec, _ := do(t, h, http.MethodGet, "/api/v1/failures"); rec.Code != http.StatusInternalServerError {
		t.Errorf("ledger error code = %d, want 500", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(&fakeController{}, fakePinger{}, nil)
	do(t, h, http.MethodGet, "/healthz")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || !strings.Contains(string(body), "api_requests_total") {
		t.Errorf("metrics code = %d, api_requests_total present = %v", rec.Code,
			strings.Contains(string(body), "api_requests_total"))
	}
}

func TestNotFound(t *testing.T) {
	h, _ := newTestRouter(&fakeController{}, fakePinger{}, nil)
	rec, env := do(t, h, http.MethodGet, "/api/v1/nope")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\tc"); got != `a\x0ab\x09c` {
		t.Errorf("sanitizeLogValue = %q", got)
	}
}
