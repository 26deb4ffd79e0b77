package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid-trading-lab/internal/domain"
)

func buy(id string, amount, price, fee float64) *domain.OrderExecution {
	return &domain.OrderExecution{ID: id, TokenID: "tok", Side: domain.SideBuy, Amount: amount, Price: price, Fee: fee, Success: true}
}

func sell(id string, amount, price, fee float64) *domain.OrderExecution {
	return &domain.OrderExecution{ID: id, TokenID: "tok", Side: domain.SideSell, Amount: amount, Price: price, Fee: fee, Success: true}
}

func TestReplayPortfolio(t *testing.T) {
	initial := domain.NewPortfolio("USD", 1000)
	failed := sell("e2", 500, 1, 0)
	failed.Success = false

	got, applied, err := ReplayPortfolio(initial, []*domain.OrderExecution{
		buy("e1", 100, 2, 0.5),
		failed,
		sell("e3", 40, 3, 0.25),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, applied)
	assert.InDelta(t, 1000-200.5+120-0.25, got.BaseBalance, 1e-9)
	assert.InDelta(t, 60, got.Holding("tok"), 1e-9)
	assert.Equal(t, 1000.0, initial.BaseBalance, "initial portfolio must not be mutated")
}

func TestReplayPortfolio_ImpossibleFill(t *testing.T) {
	_, _, err := ReplayPortfolio(domain.NewPortfolio("USD", 10), []*domain.OrderExecution{buy("e1", 100, 1, 0)})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "e1")
}

func TestComparePortfolios(t *testing.T) {
	stored := domain.NewPortfolio("USD", 1000)
	stored.Holdings["a"] = 5

	same := stored.Clone()
	same.BaseBalance += 1e-9
	assert.Empty(t, ComparePortfolios(stored, same))

	other := stored.Clone()
	other.BaseBalance = 999
	other.Holdings["b"] = 1

	divs := ComparePortfolios(stored, other)
	require.Len(t, divs, 2)
	assert.Equal(t, "BaseBalance", divs[0].Field)
	assert.Equal(t, "Holdings[b]", divs[1].Field)
}

func TestFloatEquals_RelativeAboveOne(t *testing.T) {
	assert.True(t, floatEquals(1e6, 1e6+0.05))
	assert.False(t, floatEquals(1e6, 1e6+0.5))
	assert.True(t, floatEquals(0, 5e-8))
	assert.False(t, floatEquals(0, 5e-7))
}

func TestCheckLogs(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := &domain.SessionSnapshot{
		Ticks: []domain.PriceTick{
			{Index: 0, Timestamp: ts, Price: 1},
			{Index: 2, Timestamp: ts, Price: 0},
		},
		Executions: []*domain.OrderExecution{
			{ID: "a", TickIndex: 1},
			{ID: "b", TickIndex: 0},
			{ID: "c", TickIndex: 5},
		},
	}

	fields := make([]string, 0)
	for _, d := range CheckLogs(snap) {
		fields = append(fields, d.Field)
	}
	assert.Equal(t, []string{
		"Ticks[1].Index",
		"Ticks[1].Price",
		"Executions[1].TickIndex",
		"Executions[2].TickIndex",
	}, fields)
}
