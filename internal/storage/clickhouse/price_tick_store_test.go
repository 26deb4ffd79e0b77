package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/storage"
)

func createTestTicks(n int) []domain.PriceTick {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := time.Minute / 7 // not microsecond aligned
	ticks := make([]domain.PriceTick, n)
	for i := range ticks {
		ticks[i] = domain.PriceTick{
			Index:     int64(i),
			Timestamp: base.Add(time.Duration(i+1) * step),
			Price:     1 + float64(i)*0.0123456789,
			Volume:    1000.5,
		}
	}
	return ticks
}

func TestPriceTickStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceTickStore(conn)

	ticks := createTestTicks(10)
	require.NoError(t, store.InsertBulk(ctx, "s1", ticks[5:]))
	require.NoError(t, store.InsertBulk(ctx, "s1", ticks[:5]))

	got, err := store.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 10)

	for i, tick := range got {
		assert.Equal(t, int64(i), tick.Index)
		assert.True(t, ticks[i].Timestamp.Equal(tick.Timestamp), "tick %d timestamp", i)
		assert.Equal(t, ticks[i].Price, tick.Price)
	}
}

func TestPriceTickStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceTickStore(conn)

	ticks := createTestTicks(10)
	require.NoError(t, store.InsertBulk(ctx, "s1", ticks))
	require.NoError(t, store.InsertBulk(ctx, "s2", ticks))

	got, err := store.GetByTimeRange(ctx, "s1", ticks[3].Timestamp, ticks[6].Timestamp)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, int64(3), got[0].Index)
	assert.Equal(t, int64(6), got[3].Index)
}

func TestPriceTickStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceTickStore(conn)

	ticks := createTestTicks(4)
	require.NoError(t, store.InsertBulk(ctx, "s1", ticks[:2]))

	err := store.InsertBulk(ctx, "s1", ticks[1:])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, "s1", []domain.PriceTick{ticks[3], ticks[3]})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
