package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

func createTestExecution(id, gridID string, tick int64, side domain.Side) *domain.OrderExecution {
	return &domain.OrderExecution{
		ID:          id,
		OrderID:     gridID + "-000",
		GridID:      gridID,
		TokenID:     "token",
		Side:        side,
		Amount:      105.26315789473684,
		Price:       0.9496012345678901,
		MarketPrice: 0.9500123,
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(tick+1) * 857142857),
		TickIndex:   tick,
		Success:     true,
		Slippage:    0.000432,
		Fee:         0.21052631578947367,
	}
}

func TestExecutionStore_RoundTripExact(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestSession(t, ctx, pool, "s1")
	store := NewExecutionStore(pool)

	e := createTestExecution("e1", "g1", 3, domain.SideBuy)
	require.NoError(t, store.InsertBulk(ctx, "s1", []*domain.OrderExecution{e}))

	got, err := store.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, e.Amount, got[0].Amount)
	assert.Equal(t, e.Price, got[0].Price)
	assert.Equal(t, e.MarketPrice, got[0].MarketPrice)
	assert.Equal(t, e.Fee, got[0].Fee)
	assert.Equal(t, e.Slippage, got[0].Slippage)
	assert.True(t, e.Timestamp.Equal(got[0].Timestamp))
	assert.Equal(t, domain.SideBuy, got[0].Side)
}

func TestExecutionStore_LogOrderAndGridFilter(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestSession(t, ctx, pool, "s1")
	store := NewExecutionStore(pool)

	failed := createTestExecution("e0", "g2", 1, domain.SideSell)
	failed.Success = false
	failed.FailureReason = "insufficient funds"

	require.NoError(t, store.InsertBulk(ctx, "s1", []*domain.OrderExecution{
		createTestExecution("e9", "g1", 1, domain.SideBuy),
		failed,
	}))
	require.NoError(t, store.InsertBulk(ctx, "s1", []*domain.OrderExecution{
		createTestExecution("e5", "g1", 2, domain.SideSell),
	}))

	all, err := store.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"e9", "e0", "e5"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.False(t, all[1].Success)
	assert.Equal(t, "insufficient funds", all[1].FailureReason)

	byGrid, err := store.GetByGridID(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, byGrid, 2)
	assert.Equal(t, "e9", byGrid[0].ID)
	assert.Equal(t, "e5", byGrid[1].ID)
}

func TestExecutionStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestSession(t, ctx, pool, "s1")
	store := NewExecutionStore(pool)

	require.NoError(t, store.InsertBulk(ctx, "s1", []*domain.OrderExecution{createTestExecution("e1", "g1", 1, domain.SideBuy)}))

	err := store.InsertBulk(ctx, "s1", []*domain.OrderExecution{
		createTestExecution("e2", "g1", 2, domain.SideBuy),
		createTestExecution("e1", "g1", 3, domain.SideBuy),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
