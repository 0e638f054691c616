package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getlens/lens/pkg/models"
)

const queryColumns = "request_id, sql_text, sql_normalized, bindings, duration, method, model, connection, in_transaction, created_at"

// InsertQueries writes query rows in chunks of insertChunkSize. Chunks
// are independent statements: a failing chunk does not roll back chunks
// already written, and later chunks are still attempted. The combined
// error, if any, is returned once.
func (s *Store) InsertQueries(ctx context.Context, qs []models.Query) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(qs) == 0 {
		return nil
	}

	var errs []error
	for _, batch := range chunk(qs, insertChunkSize) {
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*10)
		for _, q := range batch {
			bindings, err := encodeJSON(q.Bindings)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, q.RequestID, q.SQL, q.SQLNormalized, bindings, q.Duration,
				q.Method, q.Model, q.Connection, q.InTransaction, msec(q.CreatedAt))
		}
		if len(placeholders) == 0 {
			continue
		}

		stmt := "INSERT INTO queries (" + queryColumns + ") VALUES " + strings.Join(placeholders, ", ")
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			errs = append(errs, fmt.Errorf("inserting query chunk: %w", err))
		}
	}
	return errors.Join(errs...)
}

func queryWhere(f models.QueryFilter) *whereClause {
	w := &whereClause{}
	if f.Method != "" {
		w.add("method = ?", f.Method)
	}
	if f.Model != "" {
		w.add("model = ?", f.Model)
	}
	if f.Connection != "" {
		w.add("connection = ?", f.Connection)
	}
	if f.DurationMin != nil {
		w.add("duration >= ?", *f.DurationMin)
	}
	if f.DurationMax != nil {
		w.add("duration <= ?", *f.DurationMax)
	}
	if f.RequestID != nil {
		w.add("request_id = ?", *f.RequestID)
	}
	return w
}

// CountQueries returns the number of rows matching the filter.
func (s *Store) CountQueries(ctx context.Context, f models.QueryFilter) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	w := queryWhere(f)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM queries"+w.sql(), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting queries: %w", err)
	}
	return n, nil
}

// ListQueries returns matching rows ordered newest first.
func (s *Store) ListQueries(ctx context.Context, f models.QueryFilter, limit, offset int) ([]models.Query, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	w := queryWhere(f)
	query := "SELECT id, " + queryColumns + " FROM queries" + w.sql() +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying queries: %w", err)
	}
	defer rows.Close()

	var results []models.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

// GetQuery returns one stored query by id, used by the EXPLAIN path.
func (s *Store) GetQuery(ctx context.Context, id int64) (*models.Query, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT id, "+queryColumns+" FROM queries WHERE id = ?", id)
	q, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuery(row rowScanner) (models.Query, error) {
	var q models.Query
	var bindings string
	var created int64
	err := row.Scan(&q.ID, &q.RequestID, &q.SQL, &q.SQLNormalized, &bindings, &q.Duration,
		&q.Method, &q.Model, &q.Connection, &q.InTransaction, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return q, err
		}
		return q, fmt.Errorf("scanning query: %w", err)
	}
	if err := decodeJSON(bindings, &q.Bindings); err != nil {
		return q, err
	}
	q.CreatedAt = fromMsec(created)
	return q, nil
}

// groupSortColumns whitelists the ORDER BY targets for grouped query
// aggregation. Anything else falls back to total_duration.
var groupSortColumns = map[string]string{
	"count":          "count",
	"avg_duration":   "avg_duration",
	"total_duration": "total_duration",
}

// GroupedQueries aggregates queries by normalized SQL, sorted descending
// by the whitelisted sortBy column.
func (s *Store) GroupedQueries(ctx context.Context, sortBy string, limit int) ([]models.QueryGroup, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	column, ok := groupSortColumns[sortBy]
	if !ok {
		column = "total_duration"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sql_normalized,
			COUNT(*) AS count,
			AVG(duration) AS avg_duration,
			MIN(duration) AS min_duration,
			MAX(duration) AS max_duration,
			SUM(duration) AS total_duration
		FROM queries
		GROUP BY sql_normalized
		ORDER BY `+column+` DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying grouped queries: %w", err)
	}
	defer rows.Close()

	var groups []models.QueryGroup
	for rows.Next() {
		var g models.QueryGroup
		if err := rows.Scan(&g.SQLNormalized, &g.Count, &g.AvgDuration,
			&g.MinDuration, &g.MaxDuration, &g.TotalDuration); err != nil {
			return nil, fmt.Errorf("scanning query group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// SlowestQueryGroups returns the top normalized-SQL groups by average
// duration since the given time.
func (s *Store) SlowestQueryGroups(ctx context.Context, since time.Time, limit int) ([]models.QueryGroup, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sql_normalized,
			COUNT(*) AS count,
			AVG(duration) AS avg_duration,
			MIN(duration) AS min_duration,
			MAX(duration) AS max_duration,
			SUM(duration) AS total_duration
		FROM queries
		WHERE created_at > ?
		GROUP BY sql_normalized
		ORDER BY avg_duration DESC
		LIMIT ?
	`, msec(since), limit)
	if err != nil {
		return nil, fmt.Errorf("querying slowest queries: %w", err)
	}
	defer rows.Close()

	var groups []models.QueryGroup
	for rows.Next() {
		var g models.QueryGroup
		if err := rows.Scan(&g.SQLNormalized, &g.Count, &g.AvgDuration,
			&g.MinDuration, &g.MaxDuration, &g.TotalDuration); err != nil {
			return nil, fmt.Errorf("scanning query group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// QueryStatsBetween returns the count and mean duration of queries
// created in (from, to]. A window with no queries yields zeros.
func (s *Store) QueryStatsBetween(ctx context.Context, from, to time.Time) (int, float64, error) {
	if err := s.ready(); err != nil {
		return 0, 0, err
	}

	var count int
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(duration) FROM queries
		WHERE created_at > ? AND created_at <= ?
	`, msec(from), msec(to)).Scan(&count, &avg)
	if err != nil {
		return 0, 0, fmt.Errorf("querying query stats: %w", err)
	}
	return count, avg.Float64, nil
}

// DeleteQueriesBefore removes rows strictly older than cutoff.
func (s *Store) DeleteQueriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, "queries", cutoff)
}
