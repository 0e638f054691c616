package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getlens/lens/pkg/models"
)

// Explain looks up a stored query and runs an EXPLAIN QUERY PLAN wrapped
// copy of it against the host application's own database connection. The
// telemetry store itself is never explained against. Only SELECT
// statements are explainable; anything else returns ErrNotExplainable.
func (e *Engine) Explain(ctx context.Context, queryID int64) (*models.ExplainResult, error) {
	q, err := e.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(q.SQL)), "SELECT") {
		return nil, models.ErrNotExplainable
	}
	if e.appDB == nil {
		return nil, errors.New("no application database configured for explain")
	}

	stmt := "EXPLAIN QUERY PLAN " + q.SQL
	rows, err := e.appDB.QueryContext(ctx, stmt, q.Bindings...)
	if err != nil {
		return nil, fmt.Errorf("explaining query %d: %w", queryID, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading explain columns: %w", err)
	}

	result := &models.ExplainResult{
		Query:   q.SQL,
		Columns: cols,
		Rows:    [][]any{},
	}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning explain row: %w", err)
		}
		for i, v := range values {
			// Drivers hand text back as []byte; the dashboard wants strings.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	return result, rows.Err()
}
