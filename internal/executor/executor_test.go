package executor

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid-trading-lab/internal/domain"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func order(id string, side domain.Side, limit float64) *domain.GridOrder {
	return &domain.GridOrder{
		ID:         id,
		GridID:     "grid_test",
		TokenID:    "erg",
		Side:       side,
		Amount:     10,
		LimitPrice: limit,
		Status:     domain.OrderPending,
	}
}

func tickAt(price float64) domain.PriceTick {
	return domain.PriceTick{Index: 3, Timestamp: time.Unix(1_700_000_000, 0).UTC(), Price: price, Volume: 100}
}

func TestShouldFill(t *testing.T) {
	tests := []struct {
		name  string
		order *domain.GridOrder
		price float64
		want  bool
	}{
		{"buy below limit", order("b", domain.SideBuy, 0.9), 0.85, true},
		{"buy at limit", order("b", domain.SideBuy, 0.9), 0.9, true},
		{"buy above limit", order("b", domain.SideBuy, 0.9), 0.91, false},
		{"sell above limit", order("s", domain.SideSell, 1.1), 1.2, true},
		{"sell at limit", order("s", domain.SideSell, 1.1), 1.1, true},
		{"sell below limit", order("s", domain.SideSell, 1.1), 1.09, false},
		{"filled order", func() *domain.GridOrder {
			o := order("b", domain.SideBuy, 0.9)
			o.Status = domain.OrderFilled
			return o
		}(), 0.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldFill(tt.order, tt.price))
		})
	}
}

func TestExecute_RealizedTerms(t *testing.T) {
	ex, err := New(Options{SlippageRate: 0.01, FeeRate: 0.002, Rand: fixedRand(0.5)})
	require.NoError(t, err)

	buy := order("grid_test-000", domain.SideBuy, 1.0)
	sell := order("grid_test-001", domain.SideSell, 0.9)
	pending := order("grid_test-002", domain.SideSell, 2.0)

	execs := ex.Execute([]*domain.GridOrder{buy, sell, pending}, tickAt(0.95))
	require.Len(t, execs, 2)

	assert.Equal(t, buy.ID, execs[0].OrderID)
	assert.InDelta(t, 0.95*1.005, execs[0].Price, 1e-12)
	assert.InDelta(t, 0.005, execs[0].Slippage, 1e-12)
	assert.InDelta(t, 0.02, execs[0].Fee, 1e-12)
	assert.Equal(t, 0.95, execs[0].MarketPrice)
	assert.Equal(t, int64(3), execs[0].TickIndex)
	assert.True(t, execs[0].Success)

	assert.Equal(t, sell.ID, execs[1].OrderID)
	assert.InDelta(t, 0.95*0.995, execs[1].Price, 1e-12)

	// Orders are not mutated.
	assert.Equal(t, domain.OrderPending, buy.Status)
	assert.Nil(t, buy.Fill)
}

func TestExecute_SlippageAlwaysAdverse(t *testing.T) {
	ex, err := New(Options{SlippageRate: 0.05, FeeRate: 0.001, Rand: rand.New(rand.NewPCG(1, 2))})
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 1000; i++ {
		price := 0.5 + r.Float64()
		orders := []*domain.GridOrder{
			order("b", domain.SideBuy, 0.5+r.Float64()),
			order("s", domain.SideSell, 0.5+r.Float64()),
		}
		for _, e := range ex.Execute(orders, tickAt(price)) {
			switch e.Side {
			case domain.SideBuy:
				require.LessOrEqual(t, price, orders[0].LimitPrice)
				require.GreaterOrEqual(t, e.Price, price)
			case domain.SideSell:
				require.GreaterOrEqual(t, price, orders[1].LimitPrice)
				require.LessOrEqual(t, e.Price, price)
			}
			require.Less(t, e.Slippage, 0.05)
		}
	}
}

func TestExecute_IDsAreDeterministic(t *testing.T) {
	ex, err := New(Options{Rand: fixedRand(0)})
	require.NoError(t, err)

	o := order("grid_test-004", domain.SideBuy, 1)
	a := ex.Execute([]*domain.GridOrder{o}, tickAt(0.9))
	b := ex.Execute([]*domain.GridOrder{o}, tickAt(0.9))
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ID, b[0].ID)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{SlippageRate: 0.01})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = New(Options{SlippageRate: 1, Rand: fixedRand(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = New(Options{FeeRate: -0.1, Rand: fixedRand(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
