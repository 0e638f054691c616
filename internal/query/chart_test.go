package query

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/getlens/lens/pkg/models"
)

func TestChartSeriesShortRangePassThrough(t *testing.T) {
	eng, store := setupEngine(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Minute)
	eng.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		b := &models.MetricsBucket{
			Bucket:       now.Add(-time.Duration(i) * time.Minute),
			RequestCount: i,
			AvgDuration:  float64(i * 10),
		}
		if err := store.InsertBucket(ctx, b); err != nil {
			t.Fatalf("seeding bucket: %v", err)
		}
	}

	series := eng.ChartSeries(ctx, models.Range1h)
	if len(series) != 3 {
		t.Fatalf("expected 3 per-minute points, got %d", len(series))
	}
	// Oldest first, untouched.
	if series[0].RequestCount != 3 || series[2].RequestCount != 1 {
		t.Errorf("unexpected ordering: %+v", series)
	}
}

func TestChartSeriesMerges24h(t *testing.T) {
	eng, store := setupEngine(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Minute)
	eng.now = func() time.Time { return now }

	// Two minutes inside the same 15-minute slot.
	slot := now.Truncate(15 * time.Minute).Add(-15 * time.Minute)
	seed := []models.MetricsBucket{
		{Bucket: slot.Add(1 * time.Minute), RequestCount: 2, AvgDuration: 10, P95Duration: 50, ErrorCount: 1, QueryCount: 4, AvgQueryDuration: 2},
		{Bucket: slot.Add(2 * time.Minute), RequestCount: 4, AvgDuration: 40, P95Duration: 30, ErrorCount: 0, QueryCount: 2, AvgQueryDuration: 8},
	}
	for i := range seed {
		if err := store.InsertBucket(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding bucket: %v", err)
		}
	}

	series := eng.ChartSeries(ctx, models.Range24h)
	if len(series) != 1 {
		t.Fatalf("expected 1 merged point, got %d", len(series))
	}

	m := series[0]
	if !m.Bucket.Equal(slot) {
		t.Errorf("expected merged bucket at %v, got %v", slot, m.Bucket)
	}
	if m.RequestCount != 6 || m.ErrorCount != 1 || m.QueryCount != 6 {
		t.Errorf("counts should sum: %+v", m)
	}
	// Weighted by request count: (2*10 + 4*40) / 6.
	if math.Abs(m.AvgDuration-30) > 1e-9 {
		t.Errorf("expected weighted avg 30, got %f", m.AvgDuration)
	}
	// Weighted by query count: (4*2 + 2*8) / 6.
	if math.Abs(m.AvgQueryDuration-4) > 1e-9 {
		t.Errorf("expected weighted query avg 4, got %f", m.AvgQueryDuration)
	}
	if m.P95Duration != 50 {
		t.Errorf("expected worst-minute p95 50, got %f", m.P95Duration)
	}
}

func TestChartSeriesEmptyAndClosed(t *testing.T) {
	eng, store := setupEngine(t)

	series := eng.ChartSeries(context.Background(), models.Range7d)
	if series == nil || len(series) != 0 {
		t.Errorf("expected empty non-nil series, got %v", series)
	}

	store.Close()
	series = eng.ChartSeries(context.Background(), models.Range1h)
	if series == nil || len(series) != 0 {
		t.Errorf("expected empty non-nil series on closed store, got %v", series)
	}
}
