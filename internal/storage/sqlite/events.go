package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getlens/lens/pkg/models"
)

// InsertEvents writes event rows in chunks of insertChunkSize, with the
// same independent-chunk contract as InsertQueries.
func (s *Store) InsertEvents(ctx context.Context, evs []models.Event) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(evs) == 0 {
		return nil
	}

	var errs []error
	for _, batch := range chunk(evs, insertChunkSize) {
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*4)
		for _, ev := range batch {
			data := "null"
			if len(ev.Data) > 0 {
				data = string(ev.Data)
			}
			placeholders = append(placeholders, "(?, ?, ?, ?)")
			args = append(args, ev.RequestID, ev.Name, data, msec(ev.CreatedAt))
		}

		stmt := "INSERT INTO events (request_id, event_name, data, created_at) VALUES " +
			strings.Join(placeholders, ", ")
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			errs = append(errs, fmt.Errorf("inserting event chunk: %w", err))
		}
	}
	return errors.Join(errs...)
}

func eventWhere(f models.EventFilter) *whereClause {
	w := &whereClause{}
	if f.Name != "" {
		w.contains("event_name", f.Name)
	}
	return w
}

// CountEvents returns the number of rows matching the filter.
func (s *Store) CountEvents(ctx context.Context, f models.EventFilter) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	w := eventWhere(f)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+w.sql(), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// ListEvents returns matching rows ordered newest first.
func (s *Store) ListEvents(ctx context.Context, f models.EventFilter, limit, offset int) ([]models.Event, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	w := eventWhere(f)
	query := `
		SELECT id, request_id, event_name, data, created_at FROM events` + w.sql() + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var results []models.Event
	for rows.Next() {
		var ev models.Event
		var data string
		var created int64
		if err := rows.Scan(&ev.ID, &ev.RequestID, &ev.Name, &data, &created); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if data != "" && data != "null" {
			ev.Data = []byte(data)
		}
		ev.CreatedAt = fromMsec(created)
		results = append(results, ev)
	}
	return results, rows.Err()
}

// TopEvents returns the most frequent event names since the given time.
func (s *Store) TopEvents(ctx context.Context, since time.Time, limit int) ([]models.EventCount, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_name, COUNT(*) FROM events
		WHERE created_at > ?
		GROUP BY event_name
		ORDER BY COUNT(*) DESC
		LIMIT ?
	`, msec(since), limit)
	if err != nil {
		return nil, fmt.Errorf("querying top events: %w", err)
	}
	defer rows.Close()

	var counts []models.EventCount
	for rows.Next() {
		var ec models.EventCount
		if err := rows.Scan(&ec.Name, &ec.Count); err != nil {
			return nil, fmt.Errorf("scanning event count: %w", err)
		}
		counts = append(counts, ec)
	}
	return counts, rows.Err()
}

// DeleteEventsBefore removes rows strictly older than cutoff.
func (s *Store) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, "events", cutoff)
}
