package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/getlens/lens/pkg/models"
)

// BucketExists reports whether a metrics row exists for the exact minute
// timestamp. This is the rollup aggregator's idempotence check.
func (s *Store) BucketExists(ctx context.Context, bucket time.Time) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM metrics WHERE bucket = ?",
		bucket.Truncate(time.Minute).Unix(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking bucket: %w", err)
	}
	return n > 0, nil
}

// InsertBucket writes one rollup row. The bucket column is the primary
// key and the statement ignores conflicts, so replayed or racing ticks
// for the same minute leave exactly one row behind.
func (s *Store) InsertBucket(ctx context.Context, b *models.MetricsBucket) error {
	if err := s.ready(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO metrics (bucket, request_count, avg_duration,
			p95_duration, error_count, query_count, avg_query_duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.Bucket.Truncate(time.Minute).Unix(), b.RequestCount, b.AvgDuration,
		b.P95Duration, b.ErrorCount, b.QueryCount, b.AvgQueryDuration, msec(b.Bucket))
	if err != nil {
		return fmt.Errorf("inserting metrics bucket: %w", err)
	}
	return nil
}

// BucketsBetween returns rollup rows with bucket in (from, to], oldest
// first, for chart rendering.
func (s *Store) BucketsBetween(ctx context.Context, from, to time.Time) ([]models.MetricsBucket, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bucket, request_count, avg_duration, p95_duration,
			error_count, query_count, avg_query_duration
		FROM metrics
		WHERE bucket > ? AND bucket <= ?
		ORDER BY bucket ASC
	`, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("querying metrics buckets: %w", err)
	}
	defer rows.Close()

	var buckets []models.MetricsBucket
	for rows.Next() {
		var b models.MetricsBucket
		var bucket int64
		if err := rows.Scan(&bucket, &b.RequestCount, &b.AvgDuration, &b.P95Duration,
			&b.ErrorCount, &b.QueryCount, &b.AvgQueryDuration); err != nil {
			return nil, fmt.Errorf("scanning metrics bucket: %w", err)
		}
		b.Bucket = time.Unix(bucket, 0).UTC()
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// CountBuckets returns the number of rollup rows for the exact minute.
// Test support for the one-row-per-minute invariant.
func (s *Store) CountBuckets(ctx context.Context, bucket time.Time) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM metrics WHERE bucket = ?",
		bucket.Truncate(time.Minute).Unix(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting buckets: %w", err)
	}
	return n, nil
}

// DeleteMetricsBefore removes rollup rows strictly older than cutoff.
func (s *Store) DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, "metrics", cutoff)
}
