// Package rollup computes the per-minute metrics buckets charts read.
package rollup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/getlens/lens/internal/storage/sqlite"
	"github.com/getlens/lens/pkg/models"
)

// Interval is the tick period of the aggregator.
const Interval = time.Minute

// Aggregator rolls raw request/query rows into one metrics bucket per
// minute. A single goroutine runs the ticks, so a slow tick delays the
// next fire instead of overlapping it; the bucket-exists check keeps
// replayed ticks idempotent regardless.
type Aggregator struct {
	store    *sqlite.Store
	interval time.Duration
	log      zerolog.Logger

	now func() time.Time // test seam

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an aggregator over store.
func New(store *sqlite.Store, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:    store,
		interval: Interval,
		log:      log,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the tick loop: one run immediately, then every minute.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		a.runTick()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				a.runTick()
			}
		}
	}()
}

// Stop halts the tick loop and waits for an in-flight tick to finish.
// Idempotent.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()
}

// runTick swallows tick errors so the timer keeps its schedule.
func (a *Aggregator) runTick() {
	if err := a.Tick(context.Background()); err != nil {
		a.log.Debug().Err(err).Msg("rollup tick failed")
	}
}

// Tick computes and writes the bucket for the current minute. Exported
// so tests (and the CLI) can drive single ticks.
func (a *Aggregator) Tick(ctx context.Context) error {
	now := a.now()
	bucket := now.Truncate(time.Minute)

	exists, err := a.store.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	row := &models.MetricsBucket{Bucket: bucket}

	samples, err := a.store.RequestSamplesBetween(ctx, now.Add(-Interval), now)
	if err != nil {
		return err
	}

	// A window with no traffic still gets a zero-valued row so charts
	// render a continuous series rather than gaps.
	if len(samples) > 0 {
		row.RequestCount = len(samples)

		var total float64
		durations := make([]float64, len(samples))
		for i, s := range samples {
			durations[i] = s.Duration
			total += s.Duration
			if s.StatusCode >= 400 {
				row.ErrorCount++
			}
		}
		row.AvgDuration = total / float64(len(samples))
		row.P95Duration = NearestRankP95(durations)
	}

	queryCount, avgQueryDuration, err := a.store.QueryStatsBetween(ctx, now.Add(-Interval), now)
	if err != nil {
		return err
	}
	row.QueryCount = queryCount
	row.AvgQueryDuration = avgQueryDuration

	return a.store.InsertBucket(ctx, row)
}

// NearestRankP95 returns the 95th percentile of an ascending-sorted
// sample using the nearest-rank method: the element at index
// min(floor(n*0.95), n-1), with no interpolation.
func NearestRankP95(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(float64(n) * 0.95)
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}
