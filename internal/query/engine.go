// Package query answers the dashboard's read operations: paginated
// filtered lists, grouped SQL aggregation, overview statistics, chart
// series and EXPLAIN delegation. All reads are stateless; when the
// store is not ready every operation returns its type's zero-value
// payload so the dashboard always renders something defined.
package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/getlens/lens/internal/storage/sqlite"
	"github.com/getlens/lens/pkg/models"
)

// Defaults for list pagination and grouped aggregation.
const (
	DefaultPerPage    = 50
	MaxPerPage        = 500
	DefaultGroupLimit = 200
	widgetRowLimit    = 5
)

// Engine serves the dashboard's reads.
type Engine struct {
	store *sqlite.Store

	// appDB is the host application's own database connection, used
	// exclusively by the EXPLAIN path. The engine's own store is never
	// explained against.
	appDB *sql.DB

	log zerolog.Logger
	now func() time.Time // test seam
}

// New creates a query engine over store. appDB may be nil, in which
// case Explain reports that no application database is configured.
func New(store *sqlite.Store, appDB *sql.DB, log zerolog.Logger) *Engine {
	return &Engine{
		store: store,
		appDB: appDB,
		log:   log,
		now:   time.Now,
	}
}

// normalizePaging clamps page and perPage to sane values.
func normalizePaging(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// paginate assembles the envelope from a count and a fetch closure.
func paginate[T any](page, perPage int, count func() (int, error), fetch func(limit, offset int) ([]T, error)) models.Page[T] {
	page, perPage = normalizePaging(page, perPage)

	total, err := count()
	if err != nil {
		return models.EmptyPage[T](page, perPage)
	}

	data, err := fetch(perPage, (page-1)*perPage)
	if err != nil {
		return models.EmptyPage[T](page, perPage)
	}
	if data == nil {
		data = []T{}
	}

	return models.Page[T]{
		Data:     data,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		LastPage: (total + perPage - 1) / perPage,
	}
}

// Requests returns one page of requests matching the filter.
func (e *Engine) Requests(ctx context.Context, f models.RequestFilter, page, perPage int) models.Page[models.Request] {
	return paginate(page, perPage,
		func() (int, error) { return e.store.CountRequests(ctx, f) },
		func(limit, offset int) ([]models.Request, error) { return e.store.ListRequests(ctx, f, limit, offset) },
	)
}

// Queries returns one page of queries matching the filter.
func (e *Engine) Queries(ctx context.Context, f models.QueryFilter, page, perPage int) models.Page[models.Query] {
	return paginate(page, perPage,
		func() (int, error) { return e.store.CountQueries(ctx, f) },
		func(limit, offset int) ([]models.Query, error) { return e.store.ListQueries(ctx, f, limit, offset) },
	)
}

// Events returns one page of events matching the filter.
func (e *Engine) Events(ctx context.Context, f models.EventFilter, page, perPage int) models.Page[models.Event] {
	return paginate(page, perPage,
		func() (int, error) { return e.store.CountEvents(ctx, f) },
		func(limit, offset int) ([]models.Event, error) { return e.store.ListEvents(ctx, f, limit, offset) },
	)
}

// Emails returns one page of emails matching the filter.
func (e *Engine) Emails(ctx context.Context, f models.EmailFilter, page, perPage int) models.Page[models.Email] {
	return paginate(page, perPage,
		func() (int, error) { return e.store.CountEmails(ctx, f) },
		func(limit, offset int) ([]models.Email, error) { return e.store.ListEmails(ctx, f, limit, offset) },
	)
}

// Logs returns one page of logs matching the filter.
func (e *Engine) Logs(ctx context.Context, f models.LogFilter, page, perPage int) models.Page[models.Log] {
	return paginate(page, perPage,
		func() (int, error) { return e.store.CountLogs(ctx, f) },
		func(limit, offset int) ([]models.Log, error) { return e.store.ListLogs(ctx, f, limit, offset) },
	)
}

// Traces returns one page of traces matching the filter.
func (e *Engine) Traces(ctx context.Context, f models.TraceFilter, page, perPage int) models.Page[models.Trace] {
	return paginate(page, perPage,
		func() (int, error) { return e.store.CountTraces(ctx, f) },
		func(limit, offset int) ([]models.Trace, error) { return e.store.ListTraces(ctx, f, limit, offset) },
	)
}

// Trace returns one trace by id.
func (e *Engine) Trace(ctx context.Context, id int64) (*models.Trace, error) {
	return e.store.GetTrace(ctx, id)
}
