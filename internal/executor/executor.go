// Package executor matches resting grid orders against price ticks.
//
// It has no side effects: orders and portfolios are left untouched and the
// caller applies the returned executions.
package executor

import (
	"fmt"
	"math"

	"grid-trading-lab/internal/domain"
	"grid-trading-lab/internal/idhash"
)

// Rand is the random source used to draw slippage.
type Rand interface {
	Float64() float64
}

// Executor decides fills and their realized terms.
type Executor struct {
	slippageRate float64
	feeRate      float64
	rng          Rand
}

// Options contains configuration for creating an Executor.
type Options struct {
	SlippageRate float64 // max adverse slippage fraction, [0,1)
	FeeRate      float64 // fee per unit amount, [0,1)
	Rand         Rand    // required
}

// New creates an executor.
func New(opts Options) (*Executor, error) {
	if opts.Rand == nil {
		return nil, fmt.Errorf("%w: executor requires a random source", domain.ErrInvalidConfiguration)
	}
	if !validRate(opts.SlippageRate) {
		return nil, fmt.Errorf("%w: slippage rate must be in [0,1), got %v", domain.ErrInvalidConfiguration, opts.SlippageRate)
	}
	if !validRate(opts.FeeRate) {
		return nil, fmt.Errorf("%w: fee rate must be in [0,1), got %v", domain.ErrInvalidConfiguration, opts.FeeRate)
	}
	return &Executor{
		slippageRate: opts.SlippageRate,
		feeRate:      opts.FeeRate,
		rng:          opts.Rand,
	}, nil
}

// ShouldFill reports whether a pending order crosses at price.
// Buys fill at or below the limit, sells at or above it.
func ShouldFill(o *domain.GridOrder, price float64) bool {
	if o.Status != domain.OrderPending {
		return false
	}
	switch o.Side {
	case domain.SideBuy:
		return price <= o.LimitPrice
	case domain.SideSell:
		return price >= o.LimitPrice
	default:
		return false
	}
}

// Execute returns one execution per order that fills on tick, in input
// order. Slippage is drawn only for filling orders. Executions are
// returned with Success set; the caller downgrades them if settlement
// fails.
func (e *Executor) Execute(orders []*domain.GridOrder, tick domain.PriceTick) []*domain.OrderExecution {
	var out []*domain.OrderExecution
	for _, o := range orders {
		if !ShouldFill(o, tick.Price) {
			continue
		}
		out = append(out, e.fill(o, tick))
	}
	return out
}

func (e *Executor) fill(o *domain.GridOrder, tick domain.PriceTick) *domain.OrderExecution {
	slippage := e.slippageRate * e.rng.Float64()

	price := tick.Price * (1 + slippage)
	if o.Side == domain.SideSell {
		price = tick.Price * (1 - slippage)
	}

	return &domain.OrderExecution{
		ID:          idhash.ComputeExecutionID(o.ID, tick.Index),
		OrderID:     o.ID,
		GridID:      o.GridID,
		TokenID:     o.TokenID,
		Side:        o.Side,
		Amount:      o.Amount,
		Price:       price,
		MarketPrice: tick.Price,
		Timestamp:   tick.Timestamp,
		TickIndex:   tick.Index,
		Success:     true,
		Slippage:    slippage,
		Fee:         o.Amount * e.feeRate,
	}
}

func validRate(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v < 1
}
