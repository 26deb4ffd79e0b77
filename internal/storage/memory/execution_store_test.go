package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

func testExecution(id, gridID string, tick int64) *domain.OrderExecution {
	return &domain.OrderExecution{
		ID:          id,
		OrderID:     gridID + "-000",
		GridID:      gridID,
		TokenID:     "token",
		Side:        domain.SideBuy,
		Amount:      100,
		Price:       0.95,
		MarketPrice: 0.949,
		Timestamp:   time.Unix(tick, 0).UTC(),
		TickIndex:   tick,
		Success:     true,
		Fee:         0.2,
	}
}

func TestExecutionStore_LogOrder(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	first := []*domain.OrderExecution{testExecution("e3", "g1", 1), testExecution("e1", "g2", 1)}
	second := []*domain.OrderExecution{testExecution("e2", "g1", 2)}
	if err := store.InsertBulk(ctx, "s1", first); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, "s1", second); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetBySessionID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	want := []string{"e3", "e1", "e2"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d executions, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestExecutionStore_GetByGridID(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, "s1", []*domain.OrderExecution{
		testExecution("e1", "g1", 1),
		testExecution("e2", "g2", 1),
		testExecution("e3", "g1", 2),
	})

	got, err := store.GetByGridID(ctx, "g1")
	if err != nil {
		t.Fatalf("GetByGridID failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "e1" || got[1].ID != "e3" {
		t.Errorf("unexpected grid executions: %+v", got)
	}
}

func TestExecutionStore_DuplicateKey(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, "s1", []*domain.OrderExecution{testExecution("e1", "g1", 1)})

	err := store.InsertBulk(ctx, "s1", []*domain.OrderExecution{testExecution("e2", "g1", 2), testExecution("e1", "g1", 3)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetBySessionID(ctx, "s1")
	if len(got) != 1 {
		t.Errorf("Expected atomic failure, got %d executions", len(got))
	}
}

func TestExecutionStore_EmptyBatch(t *testing.T) {
	store := NewExecutionStore()

	if err := store.InsertBulk(context.Background(), "", nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}
