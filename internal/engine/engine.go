// Package engine assembles the telemetry store: the sqlite store, the
// ingest writer, the rollup aggregator, the retention reaper and the
// query engine, behind one facade the host application embeds.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/getlens/lens/internal/config"
	"github.com/getlens/lens/internal/ingest"
	"github.com/getlens/lens/internal/query"
	"github.com/getlens/lens/internal/retention"
	"github.com/getlens/lens/internal/rollup"
	"github.com/getlens/lens/internal/storage/sqlite"
	"github.com/getlens/lens/pkg/models"
)

// Engine is the embedded telemetry store. Collectors write through it,
// the dashboard reads through Queries(), and Start/Stop manage the
// background rollup and retention loops.
type Engine struct {
	cfg   config.Config
	store *sqlite.Store

	writer     *ingest.Writer
	aggregator *rollup.Aggregator
	reaper     *retention.Reaper
	reads      *query.Engine

	log      zerolog.Logger
	stopOnce sync.Once
}

// New opens the store at cfg.Storage.Path and wires the components.
// appDB is the host application's own database connection, used only by
// the EXPLAIN path; it may be nil.
func New(cfg config.Config, appDB *sql.DB, log zerolog.Logger) (*Engine, error) {
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		store:      store,
		writer:     ingest.NewWriter(store, cfg.BasePath, cfg.Connection, log.With().Str("component", "ingest").Logger()),
		aggregator: rollup.New(store, log.With().Str("component", "rollup").Logger()),
		reaper:     retention.New(store, cfg.RetentionDays, log.With().Str("component", "retention").Logger()),
		reads:      query.New(store, appDB, log.With().Str("component", "query").Logger()),
		log:        log,
	}, nil
}

// Start launches the rollup and retention loops.
func (e *Engine) Start() {
	e.aggregator.Start()
	e.reaper.Start()
	e.log.Info().Str("db", e.cfg.Storage.Path).Int("retention_days", e.cfg.RetentionDays).Msg("telemetry engine started")
}

// Stop halts the background loops and then closes the store, in that
// order so no loop writes to a closed handle. Idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.aggregator.Stop()
		e.reaper.Stop()
		if err := e.store.Close(); err != nil {
			e.log.Warn().Err(err).Msg("closing store")
		}
		e.log.Info().Msg("telemetry engine stopped")
	})
}

// Queries exposes the read engine for the dashboard.
func (e *Engine) Queries() *query.Engine {
	return e.reads
}

// Store exposes the underlying store for maintenance commands.
func (e *Engine) Store() *sqlite.Store {
	return e.store
}

// SetNotify registers a callback invoked with every persisted request,
// used by the live-tail stream. Must be set before collectors write.
func (e *Engine) SetNotify(fn func(models.Request)) {
	e.writer.SetNotify(fn)
}

// Collector write passthroughs. All follow the ingest contract: never
// panic, never return errors, report failures once per operation kind.

func (e *Engine) RecordRequest(ctx context.Context, r models.Request) (int64, bool) {
	return e.writer.RecordRequest(ctx, r)
}

func (e *Engine) RecordQueries(ctx context.Context, requestID int64, qs []models.Query) {
	e.writer.RecordQueries(ctx, requestID, qs)
}

func (e *Engine) RecordEvents(ctx context.Context, requestID int64, evs []models.Event) {
	e.writer.RecordEvents(ctx, requestID, evs)
}

// RecordEmail is the mail-hook entry point: the host's mailer calls it
// directly rather than through the per-request collector.
func (e *Engine) RecordEmail(ctx context.Context, m models.Email) (int64, bool) {
	return e.writer.RecordEmail(ctx, m)
}

func (e *Engine) RecordLog(ctx context.Context, l models.Log) (int64, bool) {
	return e.writer.RecordLog(ctx, l)
}

func (e *Engine) RecordTrace(ctx context.Context, requestID int64, t models.Trace) (int64, bool) {
	return e.writer.RecordTrace(ctx, requestID, t)
}

func (e *Engine) PersistRequest(ctx context.Context, r models.Request, qs []models.Query, trace *models.Trace) (int64, bool) {
	return e.writer.PersistRequest(ctx, r, qs, trace)
}

// Saved-filter passthroughs. These are user-managed presets, so unlike
// telemetry writes they surface their errors.

func (e *Engine) SaveFilter(ctx context.Context, f *models.SavedFilter) (*models.SavedFilter, error) {
	return e.store.InsertSavedFilter(ctx, f)
}

func (e *Engine) SavedFilters(ctx context.Context, section string) ([]models.SavedFilter, error) {
	return e.store.ListSavedFilters(ctx, section)
}

func (e *Engine) DeleteSavedFilter(ctx context.Context, id int64) (bool, error) {
	return e.store.DeleteSavedFilter(ctx, id)
}
