package reporting

import (
	"time"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/performance"
)

// Report is the rendered view of one stopped session.
type Report struct {
	// Metadata
	GeneratedAt time.Time

	Session     SessionSummary
	Performance performance.Report

	// Grids in creation order
	Grids []GridRow

	// Replay check of the execution log against the final portfolio
	Replay ReplaySection
}

// SessionSummary describes the session that produced the report.
type SessionSummary struct {
	SessionID        string
	Scenario         string
	MarketCondition  domain.MarketCondition
	TokenID          string
	BaseCurrency     string
	Seed             uint64
	SimulatedStart   time.Time
	SimulatedEnd     time.Time
	TickCount        int
	InitialPrice     float64
	FinalPrice       float64
	TimeAcceleration float64
}

// GridRow represents one row in the grid table.
type GridRow struct {
	GridID          string
	Status          domain.GridStatus
	PriceMin        float64
	PriceMax        float64
	BaseAmount      float64
	Orders          int
	Filled          int
	Cancelled       int
	PnL             float64
	TotalFees       float64
	AverageSlippage float64
	WinRate         float64
}

// ReplaySection contains the replay verification outcome.
type ReplaySection struct {
	Match              bool
	ReplayedExecutions int
	Divergences        []string
}
