package sqlite

import (
	"context"
	"fmt"

	"github.com/getlens/lens/pkg/models"
)

// InsertSavedFilter writes a filter preset and returns the stored record
// including its generated id.
func (s *Store) InsertSavedFilter(ctx context.Context, f *models.SavedFilter) (*models.SavedFilter, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	config := "{}"
	if len(f.Config) > 0 {
		config = string(f.Config)
	}
	createdAt := msec(f.CreatedAt)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_filters (name, section, filter_config, created_at)
		VALUES (?, ?, ?, ?)
	`, f.Name, f.Section, config, createdAt)
	if err != nil {
		return nil, fmt.Errorf("inserting saved filter: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading saved filter id: %w", err)
	}

	return &models.SavedFilter{
		ID:        id,
		Name:      f.Name,
		Section:   f.Section,
		Config:    []byte(config),
		CreatedAt: fromMsec(createdAt),
	}, nil
}

// ListSavedFilters returns presets newest first, optionally scoped to a
// section.
func (s *Store) ListSavedFilters(ctx context.Context, section string) ([]models.SavedFilter, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	w := &whereClause{}
	if section != "" {
		w.add("section = ?", section)
	}

	query := `
		SELECT id, name, section, filter_config, created_at
		FROM saved_filters` + w.sql() + `
		ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("querying saved filters: %w", err)
	}
	defer rows.Close()

	var results []models.SavedFilter
	for rows.Next() {
		var f models.SavedFilter
		var config string
		var created int64
		if err := rows.Scan(&f.ID, &f.Name, &f.Section, &config, &created); err != nil {
			return nil, fmt.Errorf("scanning saved filter: %w", err)
		}
		f.Config = []byte(config)
		f.CreatedAt = fromMsec(created)
		results = append(results, f)
	}
	return results, rows.Err()
}

// DeleteSavedFilter removes a preset and reports whether a row was
// affected.
func (s *Store) DeleteSavedFilter(ctx context.Context, id int64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM saved_filters WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting saved filter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}
