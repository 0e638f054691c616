package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/getlens/lens/internal/config"
	"github.com/getlens/lens/internal/engine"
	"github.com/getlens/lens/pkg/models"
)

func setupServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "lens.db")

	eng, err := engine.New(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(eng.Stop)

	srv := NewServer(cfg.Server.Addr, cfg.BasePath, eng, zerolog.Nop())
	go srv.hub.Run()
	t.Cleanup(srv.hub.Stop)

	return srv, eng
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	rec := get(t, srv, "/_lens/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Status string         `json:"status"`
		Tables map[string]int `json:"tables"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("expected ok status, got %q", body.Status)
	}
	if _, ok := body.Tables["requests"]; !ok {
		t.Error("expected table sizes in health payload")
	}
}

func TestListRequestsEndpoint(t *testing.T) {
	srv, eng := setupServer(t)
	ctx := context.Background()

	eng.RecordRequest(ctx, models.Request{Method: "GET", URL: "/a", StatusCode: 200, Duration: 5})
	eng.RecordRequest(ctx, models.Request{Method: "POST", URL: "/b", StatusCode: 500, Duration: 15})

	rec := get(t, srv, "/_lens/api/requests?statusMin=500&page=1&perPage=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var page models.Page[models.Request]
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected 1 filtered request, got %d", page.Total)
	}
	if page.Data[0].URL != "/b" {
		t.Errorf("unexpected row: %+v", page.Data[0])
	}
}

func TestOverviewEndpoint(t *testing.T) {
	srv, eng := setupServer(t)

	eng.RecordRequest(context.Background(), models.Request{Method: "GET", URL: "/x", StatusCode: 200, Duration: 30})

	rec := get(t, srv, "/_lens/api/overview?range=15m")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var ov models.Overview
	if err := json.Unmarshal(rec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if ov.Range != models.Range15m {
		t.Errorf("expected range 15m, got %q", ov.Range)
	}
	if ov.TotalRequests != 1 {
		t.Errorf("expected 1 request, got %d", ov.TotalRequests)
	}
}

func TestExplainEndpointErrors(t *testing.T) {
	srv, eng := setupServer(t)
	ctx := context.Background()

	rec := get(t, srv, "/_lens/api/queries/999/explain")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown query, got %d", rec.Code)
	}

	id, ok := eng.RecordRequest(ctx, models.Request{Method: "POST", URL: "/save", StatusCode: 200})
	if !ok {
		t.Fatal("RecordRequest failed")
	}
	eng.RecordQueries(ctx, id, []models.Query{{SQL: "DELETE FROM users", Duration: 2}})

	qPage := eng.Queries().Queries(ctx, models.QueryFilter{}, 1, 1)
	if qPage.Total != 1 {
		t.Fatalf("expected seeded query, got %d", qPage.Total)
	}

	rec = get(t, srv, "/_lens/api/queries/"+strconv.FormatInt(qPage.Data[0].ID, 10)+"/explain")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for non-SELECT, got %d", rec.Code)
	}
}

func TestSavedFilterLifecycle(t *testing.T) {
	srv, _ := setupServer(t)

	payload := `{"name":"errors","section":"requests","filter_config":{"statusMin":500}}`
	req := httptest.NewRequest(http.MethodPost, "/_lens/api/filters", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created models.SavedFilter
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected generated id")
	}

	rec = get(t, srv, "/_lens/api/filters?section=requests")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"errors"`) {
		t.Errorf("expected listed filter, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/_lens/api/filters/"+strconv.FormatInt(created.ID, 10), nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 on delete, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/_lens/api/filters/"+strconv.FormatInt(created.ID, 10), nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestCreateSavedFilterValidation(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/_lens/api/filters", bytes.NewBufferString(`{"section":"requests"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", rec.Code)
	}
}

func TestParseDataFilters(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want int
	}{
		{"valid triple", []string{"user_id:equals:42"}, 1},
		{"value with colons", []string{"url:startsWith:https://example.com"}, 1},
		{"bad operator dropped", []string{"user_id:matches:42"}, 0},
		{"missing parts dropped", []string{"user_id:equals"}, 0},
		{"empty field dropped", []string{":equals:42"}, 0},
		{"mixed", []string{"a:equals:1", "junk", "b:contains:x"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDataFilters(tt.raw)
			if len(got) != tt.want {
				t.Errorf("expected %d filters, got %d (%+v)", tt.want, len(got), got)
			}
		})
	}
}

func TestLiveTailBroadcast(t *testing.T) {
	srv, eng := setupServer(t)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/_lens/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing live tail: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Registration races the broadcast; give the hub a beat.
	time.Sleep(50 * time.Millisecond)

	id, ok := eng.RecordRequest(context.Background(), models.Request{Method: "GET", URL: "/live-me", StatusCode: 200})
	if !ok {
		t.Fatal("RecordRequest failed")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}

	var payload struct {
		Type string         `json:"type"`
		Data models.Request `json:"data"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		t.Fatalf("decoding broadcast: %v", err)
	}
	if payload.Type != "request" || payload.Data.ID != id || payload.Data.URL != "/live-me" {
		t.Errorf("unexpected broadcast: %+v", payload)
	}
}
