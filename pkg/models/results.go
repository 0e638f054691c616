package models

import "time"

// Page is the pagination envelope every list endpoint returns.
// LastPage is ceil(Total/PerPage); an empty table yields LastPage 0.
type Page[T any] struct {
	Data     []T `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PerPage  int `json:"perPage"`
	LastPage int `json:"lastPage"`
}

// EmptyPage returns the zero-value envelope for page/perPage, used when
// the store is not ready so the dashboard always renders a defined payload.
func EmptyPage[T any](page, perPage int) Page[T] {
	return Page[T]{Data: []T{}, Page: page, PerPage: perPage}
}

// Range is one of the fixed lookback windows the dashboard can request.
type Range string

const (
	Range15m Range = "15m"
	Range1h  Range = "1h"
	Range6h  Range = "6h"
	Range24h Range = "24h"
	Range7d  Range = "7d"
)

// ParseRange maps a query-string value to a Range, defaulting to 1h.
func ParseRange(s string) Range {
	switch Range(s) {
	case Range15m, Range1h, Range6h, Range24h, Range7d:
		return Range(s)
	default:
		return Range1h
	}
}

// Duration returns the length of the lookback window.
func (r Range) Duration() time.Duration {
	switch r {
	case Range15m:
		return 15 * time.Minute
	case Range6h:
		return 6 * time.Hour
	case Range24h:
		return 24 * time.Hour
	case Range7d:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// Minutes returns the window length in minutes, the divisor for the
// requests-per-minute scalar.
func (r Range) Minutes() float64 {
	return r.Duration().Minutes()
}

// ChartStep returns the chart bucket width for the range. Short ranges
// reuse the per-minute rollup rows directly; the 24h and 7d ranges merge
// adjacent rollup rows into coarser buckets in memory.
func (r Range) ChartStep() time.Duration {
	switch r {
	case Range24h:
		return 15 * time.Minute
	case Range7d:
		return time.Hour
	default:
		return time.Minute
	}
}

// QueryGroup is one row of the grouped query aggregation: all stored
// queries sharing a normalized SQL shape.
type QueryGroup struct {
	SQLNormalized  string  `json:"sql_normalized"`
	Count          int     `json:"count"`
	AvgDuration    float64 `json:"avg_duration"`
	MinDuration    float64 `json:"min_duration"`
	MaxDuration    float64 `json:"max_duration"`
	TotalDuration  float64 `json:"total_duration"`
	PercentOfTotal float64 `json:"percentOfTotal"`
}

// EndpointStat is one url in the slowest-endpoints widget.
type EndpointStat struct {
	URL         string  `json:"url"`
	Count       int     `json:"count"`
	AvgDuration float64 `json:"avg_duration"`
}

// QueryStats summarizes query volume over a range.
type QueryStats struct {
	Count           int     `json:"count"`
	AvgDuration     float64 `json:"avg_duration"`
	PerRequestRatio float64 `json:"per_request_ratio"`
}

// StatusDistribution buckets request status codes by class.
type StatusDistribution struct {
	Success     int `json:"2xx"`
	Redirect    int `json:"3xx"`
	ClientError int `json:"4xx"`
	ServerError int `json:"5xx"`
}

// Overview is the scalar-card and widget payload for a lookback range.
// Everything here is recomputed from raw rows, not from rollups.
type Overview struct {
	Range             Range              `json:"range"`
	TotalRequests     int                `json:"totalRequests"`
	AvgResponseTime   float64            `json:"avgResponseTime"`
	P95ResponseTime   float64            `json:"p95ResponseTime"`
	RequestsPerMinute float64            `json:"requestsPerMinute"`
	ErrorRate         float64            `json:"errorRate"`
	SlowestEndpoints  []EndpointStat     `json:"slowestEndpoints"`
	QueryStats        QueryStats         `json:"queryStats"`
	SlowestQueries    []QueryGroup       `json:"slowestQueries"`
	RecentErrors      []Log              `json:"recentErrors"`
	TopEvents         []EventCount       `json:"topEvents"`
	EmailActivity     map[string]int     `json:"emailActivity"`
	LogLevels         map[string]int     `json:"logLevelBreakdown"`
	StatusCodes       StatusDistribution `json:"statusDistribution"`
}

// EventCount is one entry of the top-events widget.
type EventCount struct {
	Name  string `json:"event_name"`
	Count int    `json:"count"`
}

// ExplainResult is the parsed plan returned by the EXPLAIN delegation
// path. Rows follow Columns ordering.
type ExplainResult struct {
	Query   string   `json:"query"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}
