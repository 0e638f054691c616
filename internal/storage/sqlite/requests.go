package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/getlens/lens/pkg/models"
)

// InsertRequest writes one request row and returns its identifier.
func (s *Store) InsertRequest(ctx context.Context, r *models.Request) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (method, url, status_code, duration, span_count, warning_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.Method, r.URL, r.StatusCode, r.Duration, r.SpanCount, r.WarningCount, msec(r.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("inserting request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading request id: %w", err)
	}
	return id, nil
}

func requestWhere(f models.RequestFilter) *whereClause {
	w := &whereClause{}
	if f.Method != "" {
		w.add("method = ?", f.Method)
	}
	if f.URL != "" {
		w.contains("url", f.URL)
	}
	if f.Status != nil {
		w.add("status_code = ?", *f.Status)
	}
	if f.StatusMin != nil {
		w.add("status_code >= ?", *f.StatusMin)
	}
	if f.StatusMax != nil {
		w.add("status_code <= ?", *f.StatusMax)
	}
	if f.DurationMin != nil {
		w.add("duration >= ?", *f.DurationMin)
	}
	if f.DurationMax != nil {
		w.add("duration <= ?", *f.DurationMax)
	}
	return w
}

// CountRequests returns the number of rows matching the filter.
func (s *Store) CountRequests(ctx context.Context, f models.RequestFilter) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	w := requestWhere(f)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM requests"+w.sql(), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting requests: %w", err)
	}
	return n, nil
}

// ListRequests returns matching rows ordered newest first.
func (s *Store) ListRequests(ctx context.Context, f models.RequestFilter, limit, offset int) ([]models.Request, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	w := requestWhere(f)
	query := `
		SELECT id, method, url, status_code, duration, span_count, warning_count, created_at
		FROM requests` + w.sql() + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying requests: %w", err)
	}
	defer rows.Close()

	var results []models.Request
	for rows.Next() {
		var r models.Request
		var created int64
		if err := rows.Scan(&r.ID, &r.Method, &r.URL, &r.StatusCode, &r.Duration,
			&r.SpanCount, &r.WarningCount, &created); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		r.CreatedAt = fromMsec(created)
		results = append(results, r)
	}
	return results, rows.Err()
}

// RequestSample is the projection the rollup and overview scalars need.
type RequestSample struct {
	Duration   float64
	StatusCode int
}

// RequestSamplesBetween returns duration/status pairs for rows created in
// (from, to], ordered by duration ascending so percentile computation can
// index directly into the result.
func (s *Store) RequestSamplesBetween(ctx context.Context, from, to time.Time) ([]RequestSample, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT duration, status_code FROM requests
		WHERE created_at > ? AND created_at <= ?
		ORDER BY duration ASC
	`, msec(from), msec(to))
	if err != nil {
		return nil, fmt.Errorf("querying request samples: %w", err)
	}
	defer rows.Close()

	var samples []RequestSample
	for rows.Next() {
		var sm RequestSample
		if err := rows.Scan(&sm.Duration, &sm.StatusCode); err != nil {
			return nil, fmt.Errorf("scanning request sample: %w", err)
		}
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// SlowestEndpoints returns the top urls by average duration since the
// given time.
func (s *Store) SlowestEndpoints(ctx context.Context, since time.Time, limit int) ([]models.EndpointStat, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT url, COUNT(*), AVG(duration)
		FROM requests
		WHERE created_at > ?
		GROUP BY url
		ORDER BY AVG(duration) DESC
		LIMIT ?
	`, msec(since), limit)
	if err != nil {
		return nil, fmt.Errorf("querying slowest endpoints: %w", err)
	}
	defer rows.Close()

	var stats []models.EndpointStat
	for rows.Next() {
		var st models.EndpointStat
		if err := rows.Scan(&st.URL, &st.Count, &st.AvgDuration); err != nil {
			return nil, fmt.Errorf("scanning endpoint stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// StatusDistribution buckets request counts by status class since the
// given time.
func (s *Store) StatusDistribution(ctx context.Context, since time.Time) (models.StatusDistribution, error) {
	var dist models.StatusDistribution
	if err := s.ready(); err != nil {
		return dist, err
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status_code BETWEEN 200 AND 299 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status_code BETWEEN 300 AND 399 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status_code BETWEEN 400 AND 499 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status_code >= 500 THEN 1 ELSE 0 END), 0)
		FROM requests WHERE created_at > ?
	`, msec(since)).Scan(&dist.Success, &dist.Redirect, &dist.ClientError, &dist.ServerError)
	if err != nil {
		return dist, fmt.Errorf("querying status distribution: %w", err)
	}
	return dist, nil
}

// DeleteRequestsBefore removes rows strictly older than cutoff.
func (s *Store) DeleteRequestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, "requests", cutoff)
}

// deleteBefore removes rows of table strictly older than cutoff. Rows
// created exactly at the cutoff are preserved.
func (s *Store) deleteBefore(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	column := "created_at"
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+column+" < ?", msec(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows for %s: %w", table, err)
	}
	return n, nil
}
