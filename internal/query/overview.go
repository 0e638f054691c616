package query

import (
	"context"

	"github.com/getlens/lens/internal/rollup"
	"github.com/getlens/lens/pkg/models"
)

// Overview computes the scalar cards and widgets for a lookback range.
// Everything is recomputed from raw rows on each call; the per-minute
// rollups are only used by ChartSeries. Individual widget failures
// degrade to their zero value rather than failing the whole payload.
func (e *Engine) Overview(ctx context.Context, rng models.Range) models.Overview {
	ov := models.Overview{
		Range:            rng,
		SlowestEndpoints: []models.EndpointStat{},
		SlowestQueries:   []models.QueryGroup{},
		RecentErrors:     []models.Log{},
		TopEvents:        []models.EventCount{},
		EmailActivity:    map[string]int{},
		LogLevels:        map[string]int{},
	}
	if !e.store.Ready() {
		return ov
	}

	now := e.now()
	since := now.Add(-rng.Duration())

	samples, err := e.store.RequestSamplesBetween(ctx, since, now)
	if err != nil {
		e.log.Debug().Err(err).Msg("overview request scan failed")
		return ov
	}

	ov.TotalRequests = len(samples)
	if len(samples) > 0 {
		var total float64
		var errorCount int
		durations := make([]float64, len(samples))
		for i, s := range samples {
			durations[i] = s.Duration
			total += s.Duration
			if s.StatusCode >= 400 {
				errorCount++
			}
		}
		ov.AvgResponseTime = total / float64(len(samples))
		ov.P95ResponseTime = rollup.NearestRankP95(durations)
		ov.ErrorRate = float64(errorCount) / float64(len(samples)) * 100
	}
	ov.RequestsPerMinute = float64(ov.TotalRequests) / rng.Minutes()

	if stats, err := e.store.SlowestEndpoints(ctx, since, widgetRowLimit); err == nil && stats != nil {
		ov.SlowestEndpoints = stats
	}

	if count, avg, err := e.store.QueryStatsBetween(ctx, since, now); err == nil {
		ov.QueryStats = models.QueryStats{Count: count, AvgDuration: avg}
		if ov.TotalRequests > 0 {
			ov.QueryStats.PerRequestRatio = float64(count) / float64(ov.TotalRequests)
		}
	}

	if groups, err := e.store.SlowestQueryGroups(ctx, since, widgetRowLimit); err == nil && groups != nil {
		ov.SlowestQueries = withPercentOfTotal(groups)
	}

	if logs, err := e.store.RecentErrors(ctx, since, widgetRowLimit); err == nil && logs != nil {
		ov.RecentErrors = logs
	}

	if events, err := e.store.TopEvents(ctx, since, widgetRowLimit); err == nil && events != nil {
		ov.TopEvents = events
	}

	if emails, err := e.store.EmailCountsByStatus(ctx, since); err == nil && emails != nil {
		ov.EmailActivity = emails
	}

	if levels, err := e.store.LogCountsByLevel(ctx, since); err == nil && levels != nil {
		ov.LogLevels = levels
	}

	if dist, err := e.store.StatusDistribution(ctx, since); err == nil {
		ov.StatusCodes = dist
	}

	return ov
}
