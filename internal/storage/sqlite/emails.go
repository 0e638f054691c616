package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/getlens/lens/pkg/models"
)

// InsertEmail writes one email row and returns its identifier.
func (s *Store) InsertEmail(ctx context.Context, e *models.Email) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	to, err := encodeJSON(e.To)
	if err != nil {
		return 0, err
	}
	cc, err := encodeJSON(e.Cc)
	if err != nil {
		return 0, err
	}
	bcc, err := encodeJSON(e.Bcc)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO emails (from_address, to_addresses, cc_addresses, bcc_addresses,
			subject, html, text, mailer, status, message_id, attachment_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.From, to, cc, bcc, e.Subject, e.HTML, e.Text, e.Mailer, e.Status,
		e.MessageID, e.AttachmentCount, msec(e.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("inserting email: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading email id: %w", err)
	}
	return id, nil
}

func emailWhere(f models.EmailFilter) *whereClause {
	w := &whereClause{}
	if f.From != "" {
		w.contains("from_address", f.From)
	}
	if f.To != "" {
		w.contains("to_addresses", f.To)
	}
	if f.Subject != "" {
		w.contains("subject", f.Subject)
	}
	if f.Mailer != "" {
		w.add("mailer = ?", f.Mailer)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	return w
}

// CountEmails returns the number of rows matching the filter.
func (s *Store) CountEmails(ctx context.Context, f models.EmailFilter) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	w := emailWhere(f)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM emails"+w.sql(), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting emails: %w", err)
	}
	return n, nil
}

// ListEmails returns matching rows ordered newest first. When the filter
// requests ExcludeBody, the html/text columns are left out of the
// projection so list views stay light.
func (s *Store) ListEmails(ctx context.Context, f models.EmailFilter, limit, offset int) ([]models.Email, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	body := "html, text"
	if f.ExcludeBody {
		body = "'' AS html, '' AS text"
	}

	w := emailWhere(f)
	query := `
		SELECT id, from_address, to_addresses, cc_addresses, bcc_addresses,
			subject, ` + body + `, mailer, status, message_id, attachment_count, created_at
		FROM emails` + w.sql() + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying emails: %w", err)
	}
	defer rows.Close()

	var results []models.Email
	for rows.Next() {
		var e models.Email
		var to, cc, bcc string
		var created int64
		if err := rows.Scan(&e.ID, &e.From, &to, &cc, &bcc, &e.Subject, &e.HTML, &e.Text,
			&e.Mailer, &e.Status, &e.MessageID, &e.AttachmentCount, &created); err != nil {
			return nil, fmt.Errorf("scanning email: %w", err)
		}
		if err := decodeJSON(to, &e.To); err != nil {
			return nil, err
		}
		if err := decodeJSON(cc, &e.Cc); err != nil {
			return nil, err
		}
		if err := decodeJSON(bcc, &e.Bcc); err != nil {
			return nil, err
		}
		e.CreatedAt = fromMsec(created)
		results = append(results, e)
	}
	return results, rows.Err()
}

// EmailCountsByStatus returns per-status counts since the given time.
func (s *Store) EmailCountsByStatus(ctx context.Context, since time.Time) (map[string]int, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM emails
		WHERE created_at > ?
		GROUP BY status
	`, msec(since))
	if err != nil {
		return nil, fmt.Errorf("querying email activity: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning email count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DeleteEmailsBefore removes rows strictly older than cutoff.
func (s *Store) DeleteEmailsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, "emails", cutoff)
}
