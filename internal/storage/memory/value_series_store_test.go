package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

func TestValueSeriesStore_InsertAndGet(t *testing.T) {
	store := NewValueSeriesStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	points := []domain.ValuePoint{
		{Timestamp: base.Add(2 * time.Minute), Value: 10200},
		{Timestamp: base, Value: 10000},
		{Timestamp: base.Add(time.Minute), Value: 9900},
	}
	if err := store.InsertBulk(ctx, "s1", points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetBySessionID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	want := []float64{10000, 9900, 10200}
	if len(got) != len(want) {
		t.Fatalf("Expected %d points, got %d", len(want), len(got))
	}
	for i, v := range want {
		if got[i].Value != v {
			t.Errorf("position %d: got %f, want %f", i, got[i].Value, v)
		}
	}
}

func TestValueSeriesStore_DuplicateTimestamp(t *testing.T) {
	store := NewValueSeriesStore()
	ctx := context.Background()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := store.InsertBulk(ctx, "s1", []domain.ValuePoint{{Timestamp: ts, Value: 1}, {Timestamp: ts, Value: 2}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetBySessionID(ctx, "s1")
	if len(got) != 0 {
		t.Errorf("Expected empty series, got %d", len(got))
	}
}
