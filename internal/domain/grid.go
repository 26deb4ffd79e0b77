package domain

import (
	"fmt"
	"time"
)

// GridStatus is the lifecycle state of a grid.
type GridStatus string

// Grid status constants
const (
	GridActive    GridStatus = "active"
	GridCompleted GridStatus = "completed"
	GridCancelled GridStatus = "cancelled"
)

// PriceRange bounds the grid levels (inclusive).
type PriceRange struct {
	Min float64
	Max float64
}

// GridConfig describes a grid to create.
type GridConfig struct {
	TokenID    string  // defaults to the session token
	BaseAmount float64 // investment deducted from the base balance
	OrderCount int     // number of price levels
	PriceRange PriceRange
}

// Validate checks the grid config ranges.
func (c GridConfig) Validate() error {
	if !finite(c.BaseAmount) || c.BaseAmount <= 0 {
		return fmt.Errorf("%w: base amount must be positive, got %v", ErrInvalidConfiguration, c.BaseAmount)
	}
	if c.OrderCount < 1 {
		return fmt.Errorf("%w: order count must be >= 1, got %d", ErrInvalidConfiguration, c.OrderCount)
	}
	if !finite(c.PriceRange.Min) || !finite(c.PriceRange.Max) || c.PriceRange.Min <= 0 {
		return fmt.Errorf("%w: price range min must be positive", ErrInvalidConfiguration)
	}
	if c.PriceRange.Max < c.PriceRange.Min {
		return fmt.Errorf("%w: price range max %v below min %v", ErrInvalidConfiguration, c.PriceRange.Max, c.PriceRange.Min)
	}
	return nil
}

// GridMetrics are recomputed after every fill batch.
type GridMetrics struct {
	TotalTrades     int
	TotalFees       float64
	AverageSlippage float64
	WinRate         float64 // fraction of filled orders that beat their limit
}

// SimulatedGrid is a set of grid orders sharing one investment.
type SimulatedGrid struct {
	ID        string
	Config    GridConfig
	Orders    []*GridOrder
	Status    GridStatus
	Reserved  float64 // escrowed base not yet spent on buys
	PnL       float64 // sell proceeds - buy cost - fees
	Metrics   GridMetrics
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// PendingOrders returns the orders still resting, in placement order.
func (g *SimulatedGrid) PendingOrders() []*GridOrder {
	var out []*GridOrder
	for _, o := range g.Orders {
		if o.Status == OrderPending {
			out = append(out, o)
		}
	}
	return out
}

// FilledOrders returns the filled orders, in placement order.
func (g *SimulatedGrid) FilledOrders() []*GridOrder {
	var out []*GridOrder
	for _, o := range g.Orders {
		if o.Status == OrderFilled {
			out = append(out, o)
		}
	}
	return out
}

// OrderCount returns the number of orders on the given side.
func (g *SimulatedGrid) OrderCount(side Side) int {
	n := 0
	for _, o := range g.Orders {
		if o.Side == side {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (g *SimulatedGrid) Clone() *SimulatedGrid {
	c := *g
	c.Orders = make([]*GridOrder, len(g.Orders))
	for i, o := range g.Orders {
		c.Orders[i] = o.Clone()
	}
	if g.ClosedAt != nil {
		t := *g.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
