package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/queryowl/queryowl/internal/config"
	"github.com/queryowl/queryowl/internal/connections"
	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/favorites"
	"github.com/queryowl/queryowl/internal/history"
	"github.com/queryowl/queryowl/internal/models"
	"github.com/queryowl/queryowl/internal/secret"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	keyring.MockInit()

	dir := t.TempDir()
	keeper, err := secret.NewKeeper(dir)
	if err != nil {
		t.Fatalf("keeper: %v", err)
	}
	store, err := connections.NewStore(dir, keeper)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	favs, err := favorites.NewManager(dir)
	if err != nil {
		t.Fatalf("favorites: %v", err)
	}
	hist, err := history.NewStore(filepath.Join(dir, "history.db"), 100)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	return New(Deps{
		Config:    config.GetDefaults(),
		Store:     store,
		Manager:   connection.NewManager(connection.PoolLimits{}),
		History:   hist,
		Favorites: favs,
	})
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestExecuteWithoutActiveConnection(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/query/execute", map[string]any{
		"connectionId": "nope",
		"sql":          "SELECT 1",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	body := decodeBody[map[string]errorBody](t, rec)
	if body["error"].Kind != "no_active_connection" {
		t.Errorf("error kind = %q, want no_active_connection", body["error"].Kind)
	}
}

func TestExecuteRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/query/execute", bytes.NewBufferString(`{"sql": `))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestConnectionCRUD(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/connections", connectionRequest{
		Name:     "local",
		Host:     "localhost",
		Port:     5432,
		Database: "app",
		Username: "dev",
		Secret:   "hunter2",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[models.Connection](t, rec)
	if created.ID == "" {
		t.Fatal("created connection has no id")
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("hunter2")) {
		t.Fatal("plaintext secret leaked into the create response")
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/connections", nil)
	listed := decodeBody[[]models.Connection](t, rec)
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("list = %+v, want the created connection", listed)
	}

	// Update with an empty secret keeps the stored one and changes the rest.
	rec = doJSON(t, srv, http.MethodPut, "/api/connections/"+created.ID, connectionRequest{
		Name:     "local renamed",
		Host:     "localhost",
		Port:     5433,
		Database: "app",
		Username: "dev",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[models.Connection](t, rec)
	if updated.Name != "local renamed" || updated.Port != 5433 {
		t.Errorf("update not applied: %+v", updated)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/connections/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/connections", nil)
	if listed := decodeBody[[]models.Connection](t, rec); len(listed) != 0 {
		t.Fatalf("list after delete = %+v, want empty", listed)
	}
}

func TestUpdateUnknownConnectionIs404(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/connections/ghost", connectionRequest{
		Name: "x", Host: "h", Port: 5432, Database: "d", Username: "u",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCreateConnectionValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/connections", connectionRequest{
		Name: "missing host", Port: 5432, Database: "d", Username: "u", Secret: "s",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTouchConnectedFailureIsNonFatal(t *testing.T) {
	srv := newTestServer(t)

	// Bookkeeping against a missing profile must not propagate: the connect
	// handler calls this after the session is already live.
	srv.touchConnected("ghost")

	rec := doJSON(t, srv, http.MethodGet, "/api/connections", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("store unusable after failed touch: status %d", rec.Code)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/api/connections/disconnect", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("disconnect #%d status = %d", i+1, rec.Code)
		}
	}
}

func TestExportStreamValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		req  exportStreamRequest
	}{
		{"unsupported format", exportStreamRequest{
			SQL:        "SELECT 1",
			OutputPath: filepath.Join(t.TempDir(), "out.xml"),
			Format:     "xml",
			Scope:      models.ScopeView,
			View:       &models.TableResult{},
		}},
		{"view scope without view", exportStreamRequest{
			SQL:        "SELECT 1",
			OutputPath: filepath.Join(t.TempDir(), "out.csv"),
			Format:     models.FormatCSV,
			Scope:      models.ScopeView,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/export/stream", tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
		})
	}
}

func TestExportStreamViewScopeWorksWithoutSession(t *testing.T) {
	srv := newTestServer(t)
	out := filepath.Join(t.TempDir(), "view.csv")

	view := &models.TableResult{
		Columns: []models.Column{{Name: "x"}},
		Rows: []models.Row{
			{"x": models.IntValue(1)},
			{"x": models.NullValue()},
		},
		ReturnedRows: 2,
		TotalRows:    2,
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/export/stream", exportStreamRequest{
		OutputPath: out,
		Format:     models.FormatCSV,
		Scope:      models.ScopeView,
		Options:    models.ExportOptions{IncludeHeaders: true},
		View:       view,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	summary := decodeBody[models.ExportSummary](t, rec)
	if summary.Rows != 2 || summary.Strategy != models.StrategyMemory {
		t.Errorf("summary = %+v, want 2 rows via memory strategy", summary)
	}
}

func TestFavoritesRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/favorites", models.Favorite{
		Name: "active users",
		SQL:  "SELECT * FROM users WHERE active",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[models.Favorite](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/favorites/"+created.ID+"/used", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark used status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/favorites", nil)
	listed := decodeBody[[]models.Favorite](t, rec)
	if len(listed) != 1 || listed[0].UsageCount != 1 {
		t.Fatalf("list = %+v, want one favorite used once", listed)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/favorites/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestHistoryListAndClear(t *testing.T) {
	srv := newTestServer(t)

	err := srv.history.Add(history.Entry{
		ConnectionID: "c1",
		Query:        "SELECT 1",
		DurationMS:   3,
		Success:      true,
	})
	if err != nil {
		t.Fatalf("seeding history: %v", err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/history?limit=10", nil)
	entries := decodeBody[[]history.Entry](t, rec)
	if len(entries) != 1 || entries[0].Query != "SELECT 1" {
		t.Fatalf("history = %+v, want the seeded entry", entries)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/history", nil)
	if entries := decodeBody[[]history.Entry](t, rec); len(entries) != 0 {
		t.Fatalf("history after clear = %+v, want empty", entries)
	}
}

func TestServeShutsDownOnContextCancel(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after context cancel")
	}
}
