package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/getlens/lens/pkg/models"
)

// InsertLog writes one log row and returns its identifier.
func (s *Store) InsertLog(ctx context.Context, l *models.Log) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	data, err := encodeJSON(l.Data)
	if err != nil {
		return 0, err
	}

	var requestID any
	if l.RequestID != "" {
		requestID = l.RequestID
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (level, message, request_id, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, l.Level, l.Message, requestID, data, msec(l.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("inserting log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading log id: %w", err)
	}
	return id, nil
}

func logWhere(f models.LogFilter) *whereClause {
	w := &whereClause{}
	if f.Level != "" {
		w.add("level = ?", f.Level)
	}
	if f.RequestID != "" {
		w.add("request_id = ?", f.RequestID)
	}
	if f.Search != "" {
		w.contains("message", f.Search)
	}
	for _, df := range f.Data {
		// Compiled against a JSON-path extraction of the structured
		// payload: $.field.
		switch df.Operator {
		case models.OpEquals:
			w.add("json_extract(data, '$.' || ?) = ?", df.Field, df.Value)
		case models.OpContains:
			w.add("json_extract(data, '$.' || ?) LIKE '%' || ? || '%'", df.Field, df.Value)
		case models.OpStartsWith:
			w.add("json_extract(data, '$.' || ?) LIKE ? || '%'", df.Field, df.Value)
		}
	}
	return w
}

// CountLogs returns the number of rows matching the filter.
func (s *Store) CountLogs(ctx context.Context, f models.LogFilter) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	w := logWhere(f)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs"+w.sql(), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting logs: %w", err)
	}
	return n, nil
}

// ListLogs returns matching rows ordered newest first.
func (s *Store) ListLogs(ctx context.Context, f models.LogFilter, limit, offset int) ([]models.Log, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	w := logWhere(f)
	query := `
		SELECT id, level, message, COALESCE(request_id, ''), data, created_at
		FROM logs` + w.sql() + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// RecentErrors returns the newest error/fatal entries.
func (s *Store) RecentErrors(ctx context.Context, since time.Time, limit int) ([]models.Log, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, level, message, COALESCE(request_id, ''), data, created_at
		FROM logs
		WHERE level IN ('error', 'fatal') AND created_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, msec(since), limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent errors: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

func scanLogs(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]models.Log, error) {
	var results []models.Log
	for rows.Next() {
		var l models.Log
		var data string
		var created int64
		if err := rows.Scan(&l.ID, &l.Level, &l.Message, &l.RequestID, &data, &created); err != nil {
			return nil, fmt.Errorf("scanning log: %w", err)
		}
		if err := decodeJSON(data, &l.Data); err != nil {
			return nil, err
		}
		l.CreatedAt = fromMsec(created)
		results = append(results, l)
	}
	return results, rows.Err()
}

// LogCountsByLevel returns per-level counts since the given time.
func (s *Store) LogCountsByLevel(ctx context.Context, since time.Time) (map[string]int, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT level, COUNT(*) FROM logs
		WHERE created_at > ?
		GROUP BY level
	`, msec(since))
	if err != nil {
		return nil, fmt.Errorf("querying log levels: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("scanning log count: %w", err)
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

// DeleteLogsBefore removes rows strictly older than cutoff.
func (s *Store) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, "logs", cutoff)
}
