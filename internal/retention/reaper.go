// Package retention deletes telemetry rows older than the configured
// window.
package retention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/getlens/lens/internal/storage/sqlite"
)

// Interval is the tick period of the reaper.
const Interval = time.Hour

// Reaper sweeps every telemetry table once at startup and then hourly,
// deleting rows older than the retention window. Each table is swept
// independently; runs carry no state, so a failed run is simply retried
// with a freshly computed cutoff on the next tick.
type Reaper struct {
	store     *sqlite.Store
	retention time.Duration
	interval  time.Duration
	log       zerolog.Logger

	now func() time.Time // test seam

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a reaper keeping retentionDays of telemetry.
func New(store *sqlite.Store, retentionDays int, log zerolog.Logger) *Reaper {
	return &Reaper{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  Interval,
		log:       log,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sweep loop: one run immediately, then hourly.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.run()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.run()
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight run. Idempotent.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Reaper) run() {
	if err := r.RunOnce(context.Background()); err != nil {
		r.log.Warn().Err(err).Msg("retention sweep failed; will retry next hour")
	}
}

// RunOnce sweeps all tables with a cutoff computed from the current
// time. Rows created exactly at the cutoff are preserved. A failing
// table does not stop the sweep of the others.
func (r *Reaper) RunOnce(ctx context.Context) error {
	cutoff := r.now().Add(-r.retention)

	sweeps := []struct {
		table string
		fn    func(context.Context, time.Time) (int64, error)
	}{
		{"requests", r.store.DeleteRequestsBefore},
		{"queries", r.store.DeleteQueriesBefore},
		{"events", r.store.DeleteEventsBefore},
		{"emails", r.store.DeleteEmailsBefore},
		{"logs", r.store.DeleteLogsBefore},
		{"traces", r.store.DeleteTracesBefore},
		{"metrics", r.store.DeleteMetricsBefore},
	}

	var errs []error
	var deleted int64
	for _, sweep := range sweeps {
		n, err := sweep.fn(ctx, cutoff)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		deleted += n
	}

	if deleted > 0 {
		r.log.Debug().Int64("rows", deleted).Time("cutoff", cutoff).Msg("retention sweep complete")
	}
	return errors.Join(errs...)
}
