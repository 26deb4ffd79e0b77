package reporting

import (
	"fmt"
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/performance"
	"grid-trading-lab/internal/verification"
)

// Generator produces reports from session snapshots.
type Generator struct {
	rollingWindow int
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		rollingWindow: performance.DefaultRollingWindow,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithRollingWindow sets the rolling metrics window, in equity samples.
func (g *Generator) WithRollingWindow(window int) *Generator {
	g.rollingWindow = window
	return g
}

// Generate produces a complete report for a stopped session.
func (g *Generator) Generate(snap *domain.SessionSnapshot) (*Report, error) {
	if snap == nil || snap.InitialPortfolio == nil || snap.FinalPortfolio == nil {
		return nil, fmt.Errorf("%w: snapshot with portfolios is required", domain.ErrInvalidState)
	}

	in := performance.InputFromSnapshot(snap)
	in.RollingWindow = g.rollingWindow

	return &Report{
		GeneratedAt: g.now(),
		Session:     generateSessionSummary(snap),
		Performance: performance.GenerateComprehensiveReport(in),
		Grids:       generateGridRows(snap.Grids),
		Replay:      generateReplaySection(snap),
	}, nil
}

func generateSessionSummary(snap *domain.SessionSnapshot) SessionSummary {
	return SessionSummary{
		SessionID:        snap.SessionID,
		Scenario:         snap.Scenario.Name,
		MarketCondition:  snap.Config.MarketCondition,
		TokenID:          snap.Config.TokenID,
		BaseCurrency:     snap.InitialPortfolio.BaseCurrency,
		Seed:             snap.Config.Seed,
		SimulatedStart:   snap.SimulatedStart,
		SimulatedEnd:     snap.SimulatedEnd,
		TickCount:        len(snap.Ticks),
		InitialPrice:     snap.Config.InitialPrice,
		FinalPrice:       snap.FinalPrice(),
		TimeAcceleration: snap.Config.TimeAcceleration,
	}
}

// generateGridRows builds one row per grid, keeping creation order.
func generateGridRows(grids []*domain.SimulatedGrid) []GridRow {
	rows := make([]GridRow, len(grids))
	for i, g := range grids {
		cancelled := 0
		for _, o := range g.Orders {
			if o.Status == domain.OrderCancelled {
				cancelled++
			}
		}
		rows[i] = GridRow{
			GridID:          g.ID,
			Status:          g.Status,
			PriceMin:        g.Config.PriceRange.Min,
			PriceMax:        g.Config.PriceRange.Max,
			BaseAmount:      g.Config.BaseAmount,
			Orders:          len(g.Orders),
			Filled:          len(g.FilledOrders()),
			Cancelled:       cancelled,
			PnL:             g.PnL,
			TotalFees:       g.Metrics.TotalFees,
			AverageSlippage: g.Metrics.AverageSlippage,
			WinRate:         g.Metrics.WinRate,
		}
	}
	return rows
}

// generateReplaySection replays the execution log. A log that cannot be
// replayed is reported as a divergence rather than failing the report.
func generateReplaySection(snap *domain.SessionSnapshot) ReplaySection {
	result, err := verification.VerifySnapshot(snap)
	if err != nil {
		return ReplaySection{Divergences: []string{err.Error()}}
	}

	section := ReplaySection{
		Match:              result.Match,
		ReplayedExecutions: result.ReplayedExecutions,
	}
	for _, d := range result.Divergences {
		section.Divergences = append(section.Divergences,
			fmt.Sprintf("%s: stored %v, replayed %v", d.Field, d.Expected, d.Actual))
	}
	return section
}
