package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/getlens/lens/internal/normalize"
	"github.com/getlens/lens/internal/storage/sqlite"
	"github.com/getlens/lens/pkg/models"
)

// Writer persists telemetry records. All methods are safe for concurrent
// use and never panic into the caller; failures are reported through the
// Reporter and signalled with the (0, false) sentinel where a return
// value exists.
type Writer struct {
	store *sqlite.Store

	// basePath is the dashboard's own URL prefix; requests under it are
	// never recorded so the toolbar does not observe its own traffic.
	basePath string

	// connection is the engine's reserved connection name; queries
	// attributed to it are never recorded so the store does not monitor
	// itself.
	connection string

	reporter *Reporter

	// notify, when set, receives each persisted request. Wired by the
	// dashboard's live stream at construction time.
	notify func(models.Request)
}

// NewWriter creates a writer persisting into store.
func NewWriter(store *sqlite.Store, basePath, connection string, log zerolog.Logger) *Writer {
	return &Writer{
		store:      store,
		basePath:   basePath,
		connection: connection,
		reporter:   NewReporter(log),
	}
}

// SetNotify registers the listener invoked after each persisted request.
// Must be called before the writer is shared between goroutines.
func (w *Writer) SetNotify(fn func(models.Request)) {
	w.notify = fn
}

// Reporter exposes the writer's warn-once reporter. Test support.
func (w *Writer) Reporter() *Reporter {
	return w.reporter
}

// recover keeps collector goroutines alive if anything below us panics;
// the panic is routed through the warn-once reporter instead.
func (w *Writer) recover(kind string) {
	if v := recover(); v != nil {
		w.reporter.Report(kind, fmt.Errorf("panic: %v", v))
	}
}

// RecordRequest writes one request row and returns its id. Returns
// (0, false) when the store is not ready, when the url falls under the
// dashboard's own base path, or on storage failure.
func (w *Writer) RecordRequest(ctx context.Context, r models.Request) (int64, bool) {
	defer w.recover("request")

	if !w.store.Ready() {
		return 0, false
	}
	if strings.HasPrefix(r.URL, w.basePath) {
		return 0, false
	}

	id, err := w.store.InsertRequest(ctx, &r)
	if err != nil {
		w.reporter.Report("request", err)
		return 0, false
	}

	if w.notify != nil {
		r.ID = id
		w.notify(r)
	}
	return id, true
}

// RecordQueries writes a batch of query rows attributed to requestID.
// Entries on the engine's reserved connection are filtered out first;
// an empty filtered batch is a no-op. Missing normalized SQL is filled
// in from the raw statement.
func (w *Writer) RecordQueries(ctx context.Context, requestID int64, qs []models.Query) {
	defer w.recover("queries")

	if !w.store.Ready() || len(qs) == 0 {
		return
	}

	kept := make([]models.Query, 0, len(qs))
	for _, q := range qs {
		if q.Connection == w.connection {
			continue
		}
		q.RequestID = requestID
		if q.SQLNormalized == "" {
			q.SQLNormalized = normalize.SQL(q.SQL)
		}
		kept = append(kept, q)
	}
	if len(kept) == 0 {
		return
	}

	if err := w.store.InsertQueries(ctx, kept); err != nil {
		w.reporter.Report("queries", err)
	}
}

// RecordEvents writes a batch of event rows attributed to requestID.
func (w *Writer) RecordEvents(ctx context.Context, requestID int64, evs []models.Event) {
	defer w.recover("events")

	if !w.store.Ready() || len(evs) == 0 {
		return
	}

	for i := range evs {
		evs[i].RequestID = requestID
	}
	if err := w.store.InsertEvents(ctx, evs); err != nil {
		w.reporter.Report("events", err)
	}
}

// RecordEmail writes one email row. This is the explicit entry point the
// mail integration calls after each send attempt.
func (w *Writer) RecordEmail(ctx context.Context, e models.Email) (int64, bool) {
	defer w.recover("email")

	if !w.store.Ready() {
		return 0, false
	}

	id, err := w.store.InsertEmail(ctx, &e)
	if err != nil {
		w.reporter.Report("email", err)
		return 0, false
	}
	return id, true
}

// RecordLog writes one log row.
func (w *Writer) RecordLog(ctx context.Context, l models.Log) (int64, bool) {
	defer w.recover("log")

	if !w.store.Ready() {
		return 0, false
	}

	id, err := w.store.InsertLog(ctx, &l)
	if err != nil {
		w.reporter.Report("log", err)
		return 0, false
	}
	return id, true
}

// RecordTrace writes one trace row attributed to requestID.
func (w *Writer) RecordTrace(ctx context.Context, requestID int64, t models.Trace) (int64, bool) {
	defer w.recover("trace")

	if !w.store.Ready() {
		return 0, false
	}

	t.RequestID = requestID
	id, err := w.store.InsertTrace(ctx, &t)
	if err != nil {
		w.reporter.Report("trace", err)
		return 0, false
	}
	return id, true
}

// PersistRequest is the composite collectors call once a request
// finishes: the request row first, then its queries, then its trace.
// If the request row cannot be written nothing else is attempted. A
// failure in a later step still returns the request id already obtained;
// the request row is authoritative and partial persistence is accepted.
func (w *Writer) PersistRequest(ctx context.Context, r models.Request, qs []models.Query, trace *models.Trace) (int64, bool) {
	id, ok := w.RecordRequest(ctx, r)
	if !ok {
		return 0, false
	}

	if len(qs) > 0 {
		w.RecordQueries(ctx, id, qs)
	}
	if trace != nil {
		w.RecordTrace(ctx, id, *trace)
	}
	return id, true
}
