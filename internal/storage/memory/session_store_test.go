package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

func testSessionRecord(id string, startedAt time.Time) *storage.SessionRecord {
	return &storage.SessionRecord{
		SessionID:        id,
		Config:           domain.DefaultSimulationConfig(),
		Scenario:         domain.ScenarioSideways(),
		StartedAt:        startedAt,
		StoppedAt:        startedAt.Add(time.Minute),
		InitialPortfolio: domain.NewPortfolio("USD", 10000),
		FinalPortfolio:   domain.NewPortfolio("USD", 10100),
		TickCount:        600,
		FinalPrice:       1.02,
	}
}

func TestSessionStore_InsertAndGet(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Insert(ctx, testSessionRecord("s1", start)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.TickCount != 600 {
		t.Errorf("TickCount mismatch: got %d, want 600", got.TickCount)
	}
	if got.FinalPortfolio.BaseBalance != 10100 {
		t.Errorf("FinalPortfolio mismatch: got %f, want 10100", got.FinalPortfolio.BaseBalance)
	}
}

func TestSessionStore_DuplicateKey(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	r := testSessionRecord("s1", time.Unix(0, 0))

	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.Insert(ctx, r)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSessionStore_NotFound(t *testing.T) {
	store := NewSessionStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSessionStore_ReturnsCopies(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	r := testSessionRecord("s1", time.Unix(0, 0))

	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	r.FinalPortfolio.BaseBalance = 0

	got, _ := store.GetByID(ctx, "s1")
	got.InitialPortfolio.Holdings["token"] = 5

	again, _ := store.GetByID(ctx, "s1")
	if again.FinalPortfolio.BaseBalance != 10100 {
		t.Errorf("stored record aliased caller's portfolio")
	}
	if again.InitialPortfolio.Holding("token") != 0 {
		t.Errorf("stored record aliased returned portfolio")
	}
}

func TestSessionStore_ListOrdering(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = store.Insert(ctx, testSessionRecord("c", base.Add(2*time.Hour)))
	_ = store.Insert(ctx, testSessionRecord("b", base))
	_ = store.Insert(ctx, testSessionRecord("a", base))

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(list) != len(want) {
		t.Fatalf("Expected %d sessions, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].SessionID != id {
			t.Errorf("position %d: got %s, want %s", i, list[i].SessionID, id)
		}
	}
}
