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

func createTestGrid(id string) *domain.SimulatedGrid {
	created := time.Date(2024, 1, 1, 0, 0, 6, 0, time.UTC)
	closed := created.Add(30 * time.Minute)
	return &domain.SimulatedGrid{
		ID: id,
		Config: domain.GridConfig{
			TokenID:    "token",
			BaseAmount: 1000,
			OrderCount: 2,
			PriceRange: domain.PriceRange{Min: 0.9, Max: 1.1},
		},
		Orders: []*domain.GridOrder{
			{
				ID: id + "-000", GridID: id, TokenID: "token",
				Side: domain.SideBuy, Amount: 555.5555555555555, LimitPrice: 0.9,
				Status: domain.OrderFilled,
				Fill: &domain.OrderFill{
					Price: 0.8995, MarketPrice: 0.9, Slippage: 0.0005, Fee: 1.111111111111111,
					FilledAt: created.Add(time.Minute),
				},
			},
			{
				ID: id + "-001", GridID: id, TokenID: "token",
				Side: domain.SideSell, Amount: 454.5454545454545, LimitPrice: 1.1,
				Status: domain.OrderCancelled,
			},
		},
		Status:    domain.GridCancelled,
		Reserved:  0,
		PnL:       -500.8,
		Metrics:   domain.GridMetrics{TotalTrades: 1, TotalFees: 1.111111111111111, AverageSlippage: 0.0005, WinRate: 1},
		CreatedAt: created,
		ClosedAt:  &closed,
	}
}

func TestGridStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestSession(t, ctx, pool, "s1")
	store := NewGridStore(pool)

	first := createTestGrid("grid_z")
	second := createTestGrid("grid_a")
	second.ClosedAt = nil
	second.Status = domain.GridActive

	require.NoError(t, store.InsertBulk(ctx, "s1", []*domain.SimulatedGrid{first}))
	require.NoError(t, store.InsertBulk(ctx, "s1", []*domain.SimulatedGrid{second}))

	got, err := store.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// creation order survives across batches
	assert.Equal(t, "grid_z", got[0].ID)
	assert.Equal(t, "grid_a", got[1].ID)

	assert.Equal(t, first.Config, got[0].Config)
	assert.Equal(t, first.Metrics, got[0].Metrics)
	assert.Equal(t, first.PnL, got[0].PnL)
	require.NotNil(t, got[0].ClosedAt)
	assert.True(t, first.ClosedAt.Equal(*got[0].ClosedAt))
	assert.Nil(t, got[1].ClosedAt)

	require.Len(t, got[0].Orders, 2)
	buy := got[0].Orders[0]
	assert.Equal(t, domain.OrderFilled, buy.Status)
	require.NotNil(t, buy.Fill)
	assert.Equal(t, 0.8995, buy.Fill.Price)
	assert.True(t, first.Orders[0].Fill.FilledAt.Equal(buy.Fill.FilledAt))
	assert.Nil(t, got[0].Orders[1].Fill)
}

func TestGridStore_DuplicateRollsBackBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestSession(t, ctx, pool, "s1")
	store := NewGridStore(pool)

	require.NoError(t, store.InsertBulk(ctx, "s1", []*domain.SimulatedGrid{createTestGrid("g1")}))

	err := store.InsertBulk(ctx, "s1", []*domain.SimulatedGrid{createTestGrid("g2"), createTestGrid("g1")})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
