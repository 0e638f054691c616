package ingest

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/getlens/lens/internal/storage/sqlite"
	"github.com/getlens/lens/pkg/models"
)

func setupWriter(t *testing.T) (*Writer, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewWriter(store, "/_lens", "lens", zerolog.Nop()), store
}

func TestRecordRequestSelfExclusion(t *testing.T) {
	w, store := setupWriter(t)
	ctx := context.Background()

	if id, ok := w.RecordRequest(ctx, models.Request{Method: "GET", URL: "/_lens/api/requests", StatusCode: 200}); ok {
		t.Errorf("dashboard request should be excluded, got id %d", id)
	}

	id, ok := w.RecordRequest(ctx, models.Request{Method: "GET", URL: "/users", StatusCode: 200})
	if !ok || id == 0 {
		t.Fatalf("sibling request should be recorded, got (%d, %v)", id, ok)
	}

	n, err := store.CountRequests(ctx, models.RequestFilter{})
	if err != nil {
		t.Fatalf("CountRequests failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 persisted request, got %d", n)
	}
}

func TestRecordQueriesReservedConnection(t *testing.T) {
	w, store := setupWriter(t)
	ctx := context.Background()

	w.RecordQueries(ctx, 1, []models.Query{
		{SQL: "SELECT 1", Connection: "lens", Duration: 1},
		{SQL: "SELECT * FROM users WHERE id = 7", Connection: "app", Duration: 2},
	})

	rows, err := store.ListQueries(ctx, models.QueryFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("ListQueries failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the app connection's query, got %d rows", len(rows))
	}
	if rows[0].Connection != "app" {
		t.Errorf("unexpected connection %q", rows[0].Connection)
	}
	if rows[0].SQLNormalized != "SELECT * FROM users WHERE id = ?" {
		t.Errorf("expected normalized SQL to be filled in, got %q", rows[0].SQLNormalized)
	}
	if rows[0].RequestID != 1 {
		t.Errorf("expected request id 1, got %d", rows[0].RequestID)
	}
}

func TestRecordQueriesAllReservedIsNoop(t *testing.T) {
	w, store := setupWriter(t)
	ctx := context.Background()

	w.RecordQueries(ctx, 1, []models.Query{
		{SQL: "SELECT 1", Connection: "lens"},
		{SQL: "SELECT 2", Connection: "lens"},
	})

	n, err := store.CountQueries(ctx, models.QueryFilter{})
	if err != nil {
		t.Fatalf("CountQueries failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no persisted queries, got %d", n)
	}
}

func TestPersistRequestSequencing(t *testing.T) {
	w, store := setupWriter(t)
	ctx := context.Background()

	trace := &models.Trace{
		Method: "GET", URL: "/users", StatusCode: 200, TotalDuration: 20,
		SpanCount: 1, Spans: []models.Span{{ID: "a", Label: "handler", Duration: 20}},
	}
	id, ok := w.PersistRequest(ctx, models.Request{Method: "GET", URL: "/users", StatusCode: 200, Duration: 20},
		[]models.Query{{SQL: "SELECT 1", Connection: "app", Duration: 1}}, trace)
	if !ok {
		t.Fatal("PersistRequest should succeed")
	}

	qs, err := store.ListQueries(ctx, models.QueryFilter{RequestID: &id}, 10, 0)
	if err != nil {
		t.Fatalf("ListQueries failed: %v", err)
	}
	if len(qs) != 1 {
		t.Errorf("expected 1 query attributed to request, got %d", len(qs))
	}

	traces, err := store.ListTraces(ctx, models.TraceFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("ListTraces failed: %v", err)
	}
	if len(traces) != 1 || traces[0].RequestID != id {
		t.Errorf("expected 1 trace attributed to request %d, got %+v", id, traces)
	}
}

func TestPersistRequestExcludedWritesNothing(t *testing.T) {
	w, store := setupWriter(t)
	ctx := context.Background()

	_, ok := w.PersistRequest(ctx, models.Request{Method: "GET", URL: "/_lens/chart"},
		[]models.Query{{SQL: "SELECT 1", Connection: "app"}}, &models.Trace{Method: "GET", URL: "/_lens/chart"})
	if ok {
		t.Fatal("excluded request should not persist")
	}

	if n, _ := store.CountQueries(ctx, models.QueryFilter{}); n != 0 {
		t.Errorf("expected no queries, got %d", n)
	}
	if n, _ := store.CountTraces(ctx, models.TraceFilter{}); n != 0 {
		t.Errorf("expected no traces, got %d", n)
	}
}

func TestWritesAfterCloseAreSuppressed(t *testing.T) {
	w, store := setupWriter(t)
	ctx := context.Background()

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// None of these should panic or error into the caller.
	if _, ok := w.RecordRequest(ctx, models.Request{Method: "GET", URL: "/x"}); ok {
		t.Error("expected request write to report failure")
	}
	w.RecordQueries(ctx, 1, []models.Query{{SQL: "SELECT 1", Connection: "app"}})
	w.RecordEvents(ctx, 1, []models.Event{{Name: "user.created"}})
	if _, ok := w.RecordEmail(ctx, models.Email{From: "a@b.c", Status: models.EmailSent}); ok {
		t.Error("expected email write to report failure")
	}
	if _, ok := w.RecordLog(ctx, models.Log{Level: "info", Message: "x"}); ok {
		t.Error("expected log write to report failure")
	}
}

func TestConcurrentWrites(t *testing.T) {
	w, store := setupWriter(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.PersistRequest(ctx, models.Request{Method: "GET", URL: "/users", StatusCode: 200, Duration: 5},
				[]models.Query{{SQL: "SELECT 1", Connection: "app", Duration: 1}}, nil)
		}()
	}
	wg.Wait()

	n, err := store.CountRequests(ctx, models.RequestFilter{})
	if err != nil {
		t.Fatalf("CountRequests failed: %v", err)
	}
	if n != 20 {
		t.Errorf("expected 20 requests, got %d", n)
	}
}

func TestReporterWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(zerolog.New(&buf))

	r.Report("queries", context.DeadlineExceeded)
	r.Report("queries", context.DeadlineExceeded)
	r.Report("queries", context.DeadlineExceeded)
	r.Report("events", context.DeadlineExceeded)
	r.Report("queries", nil)

	lines := strings.Count(buf.String(), "\n")
	if lines != 2 {
		t.Fatalf("expected one warning per operation kind (2 lines), got %d:\n%s", lines, buf.String())
	}

	buf.Reset()
	r.Reset()
	r.Report("queries", context.DeadlineExceeded)
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("expected a fresh warning after Reset, got:\n%s", buf.String())
	}
}
