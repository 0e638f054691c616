package rollup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/getlens/lens/internal/storage/sqlite"
	"github.com/getlens/lens/pkg/models"
)

func setupAggregator(t *testing.T) (*Aggregator, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(store, zerolog.Nop()), store
}

func TestNearestRankP95(t *testing.T) {
	tests := []struct {
		n    int
		want int // expected selected index
	}{
		{1, 0},
		{2, 1},
		{20, 19},
		{100, 95},
	}

	for _, tt := range tests {
		sorted := make([]float64, tt.n)
		for i := range sorted {
			sorted[i] = float64(i)
		}
		got := NearestRankP95(sorted)
		if got != float64(tt.want) {
			t.Errorf("n=%d: expected element at index %d (%v), got %v", tt.n, tt.want, float64(tt.want), got)
		}
	}

	if NearestRankP95(nil) != 0 {
		t.Error("empty sample should yield 0")
	}
}

func TestTickComputesBucket(t *testing.T) {
	agg, store := setupAggregator(t)
	ctx := context.Background()

	now := time.Now()
	agg.now = func() time.Time { return now }

	for _, r := range []models.Request{
		{Method: "GET", URL: "/a", StatusCode: 200, Duration: 10, CreatedAt: now.Add(-10 * time.Second)},
		{Method: "GET", URL: "/b", StatusCode: 200, Duration: 20, CreatedAt: now.Add(-20 * time.Second)},
		{Method: "GET", URL: "/c", StatusCode: 500, Duration: 90, CreatedAt: now.Add(-30 * time.Second)},
	} {
		if _, err := store.InsertRequest(ctx, &r); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}
	err := store.InsertQueries(ctx, []models.Query{
		{SQL: "SELECT 1", SQLNormalized: "SELECT ?", Duration: 4, CreatedAt: now.Add(-5 * time.Second)},
		{SQL: "SELECT 2", SQLNormalized: "SELECT ?", Duration: 6, CreatedAt: now.Add(-5 * time.Second)},
	})
	if err != nil {
		t.Fatalf("seeding queries: %v", err)
	}

	if err := agg.Tick(ctx); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	bucket := now.Truncate(time.Minute)
	rows, err := store.BucketsBetween(ctx, bucket.Add(-time.Minute), bucket)
	if err != nil {
		t.Fatalf("BucketsBetween failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(rows))
	}

	b := rows[0]
	if b.RequestCount != 3 {
		t.Errorf("expected request_count 3, got %d", b.RequestCount)
	}
	if b.AvgDuration != 40 {
		t.Errorf("expected avg_duration 40, got %v", b.AvgDuration)
	}
	if b.P95Duration != 90 {
		t.Errorf("expected p95_duration 90 (nearest rank of [10 20 90]), got %v", b.P95Duration)
	}
	if b.ErrorCount != 1 {
		t.Errorf("expected error_count 1, got %d", b.ErrorCount)
	}
	if b.QueryCount != 2 || b.AvgQueryDuration != 5 {
		t.Errorf("unexpected query stats: %+v", b)
	}
}

func TestTickIdempotentPerMinute(t *testing.T) {
	agg, store := setupAggregator(t)
	ctx := context.Background()

	now := time.Now()
	agg.now = func() time.Time { return now }

	// Two ticks in the same minute with no traffic at all.
	if err := agg.Tick(ctx); err != nil {
		t.Fatalf("first Tick failed: %v", err)
	}
	if err := agg.Tick(ctx); err != nil {
		t.Fatalf("second Tick failed: %v", err)
	}

	n, err := store.CountBuckets(ctx, now)
	if err != nil {
		t.Fatalf("CountBuckets failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 bucket for the minute, got %d", n)
	}

	rows, err := store.BucketsBetween(ctx, now.Add(-time.Minute).Truncate(time.Minute), now)
	if err != nil {
		t.Fatalf("BucketsBetween failed: %v", err)
	}
	if len(rows) != 1 || rows[0].RequestCount != 0 {
		t.Errorf("expected one zero-valued bucket, got %+v", rows)
	}
}

func TestTickWritesZeroBucketForQuietMinute(t *testing.T) {
	agg, store := setupAggregator(t)
	ctx := context.Background()

	now := time.Now()
	agg.now = func() time.Time { return now }

	if err := agg.Tick(ctx); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	rows, err := store.BucketsBetween(ctx, now.Add(-time.Minute).Truncate(time.Minute), now)
	if err != nil {
		t.Fatalf("BucketsBetween failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected a zero bucket, got %d rows", len(rows))
	}
	b := rows[0]
	if b.RequestCount != 0 || b.AvgDuration != 0 || b.P95Duration != 0 || b.QueryCount != 0 {
		t.Errorf("expected all-zero bucket, got %+v", b)
	}
}

func TestStopIdempotent(t *testing.T) {
	agg, _ := setupAggregator(t)

	agg.Start()
	agg.Stop()
	agg.Stop()
}

func TestTickSurvivesClosedStore(t *testing.T) {
	agg, store := setupAggregator(t)

	store.Close()
	if err := agg.Tick(context.Background()); err == nil {
		t.Error("expected an error from a closed store")
	}
	// runTick must swallow it.
	agg.runTick()
}
