package query

import (
	"context"

	"github.com/getlens/lens/pkg/models"
)

// GroupedQueries aggregates stored queries by normalized SQL. sortBy is
// whitelisted to count, avg_duration or total_duration (the default);
// limit falls back to DefaultGroupLimit when non-positive. Each group's
// PercentOfTotal is relative to the returned set, not a full-table
// aggregate, so a truncated result still sums to 100.
func (e *Engine) GroupedQueries(ctx context.Context, sortBy string, limit int) []models.QueryGroup {
	if limit <= 0 {
		limit = DefaultGroupLimit
	}

	groups, err := e.store.GroupedQueries(ctx, sortBy, limit)
	if err != nil {
		return []models.QueryGroup{}
	}
	return withPercentOfTotal(groups)
}

// withPercentOfTotal fills PercentOfTotal across the returned set.
func withPercentOfTotal(groups []models.QueryGroup) []models.QueryGroup {
	if groups == nil {
		return []models.QueryGroup{}
	}

	var sum float64
	for _, g := range groups {
		sum += g.TotalDuration
	}
	if sum <= 0 {
		return groups
	}

	for i := range groups {
		groups[i].PercentOfTotal = groups[i].TotalDuration / sum * 100
	}
	return groups
}
