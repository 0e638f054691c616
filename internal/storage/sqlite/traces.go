package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/getlens/lens/pkg/models"
)

// InsertTrace writes one trace row and returns its identifier. Spans and
// warnings are serialized here; callers hand in typed values.
func (s *Store) InsertTrace(ctx context.Context, t *models.Trace) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	spans, err := encodeJSON(t.Spans)
	if err != nil {
		return 0, err
	}
	warnings, err := encodeJSON(t.Warnings)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO traces (request_id, method, url, status_code, total_duration,
			span_count, spans, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.RequestID, t.Method, t.URL, t.StatusCode, t.TotalDuration,
		t.SpanCount, spans, warnings, msec(t.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("inserting trace: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading trace id: %w", err)
	}
	return id, nil
}

func traceWhere(f models.TraceFilter) *whereClause {
	w := &whereClause{}
	if f.Method != "" {
		w.add("method = ?", f.Method)
	}
	if f.URL != "" {
		w.contains("url", f.URL)
	}
	if f.StatusMin != nil {
		w.add("status_code >= ?", *f.StatusMin)
	}
	if f.StatusMax != nil {
		w.add("status_code <= ?", *f.StatusMax)
	}
	return w
}

// CountTraces returns the number of rows matching the filter.
func (s *Store) CountTraces(ctx context.Context, f models.TraceFilter) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	w := traceWhere(f)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM traces"+w.sql(), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting traces: %w", err)
	}
	return n, nil
}

// ListTraces returns matching rows ordered newest first.
func (s *Store) ListTraces(ctx context.Context, f models.TraceFilter, limit, offset int) ([]models.Trace, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	w := traceWhere(f)
	query := `
		SELECT id, request_id, method, url, status_code, total_duration,
			span_count, spans, warnings, created_at
		FROM traces` + w.sql() + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying traces: %w", err)
	}
	defer rows.Close()

	var results []models.Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// GetTrace returns one trace by id.
func (s *Store) GetTrace(ctx context.Context, id int64) (*models.Trace, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, request_id, method, url, status_code, total_duration,
			span_count, spans, warnings, created_at
		FROM traces WHERE id = ?
	`, id)
	t, err := scanTrace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTrace(row rowScanner) (models.Trace, error) {
	var t models.Trace
	var spans, warnings string
	var created int64
	err := row.Scan(&t.ID, &t.RequestID, &t.Method, &t.URL, &t.StatusCode,
		&t.TotalDuration, &t.SpanCount, &spans, &warnings, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scanning trace: %w", err)
	}
	if err := decodeJSON(spans, &t.Spans); err != nil {
		return t, err
	}
	if err := decodeJSON(warnings, &t.Warnings); err != nil {
		return t, err
	}
	t.CreatedAt = fromMsec(created)
	return t, nil
}

// DeleteTracesBefore removes rows strictly older than cutoff.
func (s *Store) DeleteTracesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, "traces", cutoff)
}
