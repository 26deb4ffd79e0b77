package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

func testTicks(n int) []domain.PriceTick {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := make([]domain.PriceTick, n)
	for i := range ticks {
		ticks[i] = domain.PriceTick{
			Index:     int64(i),
			Timestamp: base.Add(time.Duration(i+1) * 6 * time.Second),
			Price:     1 + float64(i)/100,
			Volume:    1000,
		}
	}
	return ticks
}

func TestPriceTickStore_InsertAndGet(t *testing.T) {
	store := NewPriceTickStore()
	ctx := context.Background()

	ticks := testTicks(5)
	// insert out of order
	if err := store.InsertBulk(ctx, "s1", []domain.PriceTick{ticks[3], ticks[4], ticks[0]}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, "s1", []domain.PriceTick{ticks[2], ticks[1]}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetBySessionID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Expected 5 ticks, got %d", len(got))
	}
	for i, tick := range got {
		if tick.Index != int64(i) {
			t.Errorf("position %d: got index %d", i, tick.Index)
		}
	}
}

func TestPriceTickStore_GetByTimeRange(t *testing.T) {
	store := NewPriceTickStore()
	ctx := context.Background()

	ticks := testTicks(10)
	_ = store.InsertBulk(ctx, "s1", ticks)

	got, err := store.GetByTimeRange(ctx, "s1", ticks[2].Timestamp, ticks[5].Timestamp)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Expected 4 ticks (inclusive range), got %d", len(got))
	}
	if got[0].Index != 2 || got[3].Index != 5 {
		t.Errorf("range bounds mismatch: first %d, last %d", got[0].Index, got[3].Index)
	}
}

func TestPriceTickStore_DuplicateKey(t *testing.T) {
	store := NewPriceTickStore()
	ctx := context.Background()

	ticks := testTicks(3)
	_ = store.InsertBulk(ctx, "s1", ticks[:1])

	err := store.InsertBulk(ctx, "s1", ticks)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// same index in another session is fine
	if err := store.InsertBulk(ctx, "s2", ticks); err != nil {
		t.Errorf("other session insert failed: %v", err)
	}

	got, _ := store.GetBySessionID(ctx, "s1")
	if len(got) != 1 {
		t.Errorf("Expected atomic failure, got %d ticks", len(got))
	}
}
