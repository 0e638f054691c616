package query

import (
	"context"
	"time"

	"github.com/getlens/lens/pkg/models"
)

// ChartSeries returns the rollup rows for the range, oldest first. The
// short ranges reuse the per-minute rows directly; 24h and 7d merge
// adjacent minutes into 15- and 60-minute buckets so the chart stays at
// a renderable point count.
func (e *Engine) ChartSeries(ctx context.Context, rng models.Range) []models.MetricsBucket {
	now := e.now()
	buckets, err := e.store.BucketsBetween(ctx, now.Add(-rng.Duration()), now)
	if err != nil {
		e.log.Debug().Err(err).Msg("chart scan failed")
		return []models.MetricsBucket{}
	}
	if buckets == nil {
		return []models.MetricsBucket{}
	}

	step := rng.ChartStep()
	if step <= time.Minute {
		return buckets
	}
	return mergeBuckets(buckets, step)
}

// mergeBuckets coalesces per-minute rows into step-wide buckets keyed by
// the truncated bucket time. Counts sum, averages are weighted by their
// row counts, and p95 takes the worst minute in the window.
func mergeBuckets(buckets []models.MetricsBucket, step time.Duration) []models.MetricsBucket {
	var merged []models.MetricsBucket
	idx := map[int64]int{}

	for _, b := range buckets {
		key := b.Bucket.Truncate(step).Unix()
		i, ok := idx[key]
		if !ok {
			idx[key] = len(merged)
			merged = append(merged, models.MetricsBucket{Bucket: b.Bucket.Truncate(step)})
			i = len(merged) - 1
		}
		m := &merged[i]

		// Weighted running averages so quiet minutes don't dilute busy ones.
		if total := m.RequestCount + b.RequestCount; total > 0 {
			m.AvgDuration = (m.AvgDuration*float64(m.RequestCount) + b.AvgDuration*float64(b.RequestCount)) / float64(total)
		}
		if total := m.QueryCount + b.QueryCount; total > 0 {
			m.AvgQueryDuration = (m.AvgQueryDuration*float64(m.QueryCount) + b.AvgQueryDuration*float64(b.QueryCount)) / float64(total)
		}
		m.RequestCount += b.RequestCount
		m.ErrorCount += b.ErrorCount
		m.QueryCount += b.QueryCount
		if b.P95Duration > m.P95Duration {
			m.P95Duration = b.P95Duration
		}
	}
	return merged
}
