package reporting

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid-trading-lab/internal/domain"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testSnapshot() *domain.SessionSnapshot {
	cfg := domain.DefaultSimulationConfig()
	cfg.TokenID = "tok"

	at := func(i int) time.Time { return testStart.Add(time.Duration(i) * time.Minute) }

	buy := &domain.OrderExecution{
		ID: "e1", OrderID: "grid_a-000", GridID: "grid_a", TokenID: "tok",
		Side: domain.SideBuy, Amount: 100, Price: 1.0, MarketPrice: 0.999, Fee: 0.2,
		Timestamp: at(2), TickIndex: 1, Success: true,
	}
	sell := &domain.OrderExecution{
		ID: "e2", OrderID: "grid_a-001", GridID: "grid_a", TokenID: "tok",
		Side: domain.SideSell, Amount: 100, Price: 1.1, MarketPrice: 1.101, Fee: 0.2,
		Timestamp: at(3), TickIndex: 2, Success: true,
	}

	closed := at(3)
	grid := &domain.SimulatedGrid{
		ID: "grid_a",
		Config: domain.GridConfig{
			TokenID: "tok", BaseAmount: 200, OrderCount: 2,
			PriceRange: domain.PriceRange{Min: 0.9, Max: 1.1},
		},
		Orders: []*domain.GridOrder{
			{ID: "grid_a-000", GridID: "grid_a", Side: domain.SideBuy, Amount: 100, LimitPrice: 1.0, Status: domain.OrderFilled},
			{ID: "grid_a-001", GridID: "grid_a", Side: domain.SideSell, Amount: 100, LimitPrice: 1.1, Status: domain.OrderFilled},
		},
		Status:    domain.GridCompleted,
		PnL:       9.6,
		Metrics:   domain.GridMetrics{TotalTrades: 2, TotalFees: 0.4, AverageSlippage: 0.001},
		CreatedAt: at(0),
		ClosedAt:  &closed,
	}

	final := domain.NewPortfolio("USD", 1009.6)
	final.Holdings["tok"] = 0

	return &domain.SessionSnapshot{
		SessionID:        "session-1",
		Config:           cfg,
		Scenario:         domain.ScenarioSideways(),
		SimulatedStart:   at(0),
		SimulatedEnd:     at(3),
		InitialPortfolio: domain.NewPortfolio("USD", 1000),
		FinalPortfolio:   final,
		Grids:            []*domain.SimulatedGrid{grid},
		Ticks: []domain.PriceTick{
			{Index: 0, Timestamp: at(1), Price: 1.02, Volume: 1000},
			{Index: 1, Timestamp: at(2), Price: 0.999, Volume: 1000},
			{Index: 2, Timestamp: at(3), Price: 1.101, Volume: 1000},
		},
		Executions: []*domain.OrderExecution{buy, sell},
		ValueSeries: []domain.ValuePoint{
			{Timestamp: at(0), Value: 1000},
			{Timestamp: at(1), Value: 1000},
			{Timestamp: at(2), Value: 999.7},
			{Timestamp: at(3), Value: 1009.6},
		},
	}
}

func TestGenerate(t *testing.T) {
	generated := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	g := NewGenerator().WithClock(func() time.Time { return generated })

	r, err := g.Generate(testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, generated, r.GeneratedAt)
	assert.Equal(t, "session-1", r.Session.SessionID)
	assert.Equal(t, "sideways", r.Session.Scenario)
	assert.Equal(t, "USD", r.Session.BaseCurrency)
	assert.Equal(t, 3, r.Session.TickCount)
	assert.Equal(t, 1.101, r.Session.FinalPrice)

	require.Len(t, r.Grids, 1)
	assert.Equal(t, 2, r.Grids[0].Filled)
	assert.Equal(t, 0, r.Grids[0].Cancelled)
	assert.Equal(t, domain.GridCompleted, r.Grids[0].Status)

	assert.Equal(t, 1, r.Performance.TradeCount)
	assert.InDelta(t, 0.0096, r.Performance.TotalReturn, 1e-12)

	assert.True(t, r.Replay.Match, "divergences: %v", r.Replay.Divergences)
	assert.Equal(t, 2, r.Replay.ReplayedExecutions)
}

func TestGenerate_ReportsDivergence(t *testing.T) {
	snap := testSnapshot()
	snap.FinalPortfolio.BaseBalance = 1200

	r, err := NewGenerator().Generate(snap)
	require.NoError(t, err)

	assert.False(t, r.Replay.Match)
	require.NotEmpty(t, r.Replay.Divergences)
	assert.True(t, strings.HasPrefix(r.Replay.Divergences[0], "BaseBalance:"))
}

func TestGenerate_UnreplayableLog(t *testing.T) {
	snap := testSnapshot()
	snap.Executions[0].Amount = 1e6

	r, err := NewGenerator().Generate(snap)
	require.NoError(t, err)

	assert.False(t, r.Replay.Match)
	require.Len(t, r.Replay.Divergences, 1)
	assert.Contains(t, r.Replay.Divergences[0], "insufficient funds")
}

func TestGenerate_RequiresSnapshot(t *testing.T) {
	_, err := NewGenerator().Generate(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRenderMarkdown(t *testing.T) {
	r, err := NewGenerator().Generate(testSnapshot())
	require.NoError(t, err)

	md := RenderMarkdown(r)

	for _, want := range []string{
		"# Grid Simulation Report",
		"## Session",
		"## Performance",
		"## Trading",
		"| grid_a | completed |",
		"## Drawdown Periods",
		"**Match.** 2 executions replayed",
	} {
		assert.Contains(t, md, want)
	}
}

func TestRenderMarkdown_Divergent(t *testing.T) {
	snap := testSnapshot()
	snap.FinalPortfolio.Holdings["tok"] = 5

	r, err := NewGenerator().Generate(snap)
	require.NoError(t, err)

	md := RenderMarkdown(r)
	assert.Contains(t, md, "**Divergent.**")
	assert.Contains(t, md, "- Holdings[tok]:")
}

func TestRenderCSV(t *testing.T) {
	r, err := NewGenerator().Generate(testSnapshot())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(RenderCSV(r.Grids)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "grid_id,status,"))
	assert.True(t, strings.HasPrefix(lines[1], "grid_a,completed,0.900000,1.100000,200.000000,2,2,0,"))

	trades := strings.Split(strings.TrimSpace(RenderTradesCSV(r.Performance.Trades)), "\n")
	require.Len(t, trades, 2)
	assert.True(t, strings.HasPrefix(trades[1], "e2,grid_a,100.00000000,"))

	equity := strings.Split(strings.TrimSpace(RenderEquityCSV(testSnapshot().ValueSeries)), "\n")
	assert.Len(t, equity, 5)
}
