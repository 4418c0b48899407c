package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/curio-sh/curio/internal/config"
	"github.com/curio-sh/curio/internal/database"
	"github.com/curio-sh/curio/internal/timeline"
)

func testServer(t *testing.T) (*Server, *timeline.Service) {
	t.Helper()

	dbCfg := &config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	repo, err := timeline.NewRepository(context.Background(), db, nil)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	tl := timeline.NewService(repo)

	srv := New(&config.ServerConfig{Host: "localhost", Port: 0}, db, tl)
	return srv, tl
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected metrics output")
	}
}

func TestTimelineEndpoint(t *testing.T) {
	srv, tl := testServer(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		if err := tl.AddMessage(ctx, timeline.NewWatchlistAddedMessage([]string{name})); err != nil {
			t.Fatalf("add message: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/timeline", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Page     int                 `json:"page"`
		PageSize int                 `json:"page_size"`
		Messages []*timeline.Message `json:"messages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(body.Messages))
	}
}

func TestTimelineEndpointEmpty(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/timeline", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Messages []*timeline.Message `json:"messages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Messages == nil {
		t.Error("expected an empty array, not null")
	}
}

func TestTimelineEndpointBadPaging(t *testing.T) {
	srv, _ := testServer(t)

	for _, target := range []string{
		"/api/timeline?page=-1",
		"/api/timeline?page_size=0",
		"/api/timeline?page=abc",
	} {
		rec := httptest.NewRecorder()
		srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}
