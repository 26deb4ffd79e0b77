package domain

import "time"

// OrderExecution is one entry of the append-only execution log.
// It is the canonical source for performance analytics and replay.
type OrderExecution struct {
	ID            string
	OrderID       string
	GridID        string
	TokenID       string
	Side          Side
	Amount        float64 // token units
	Price         float64 // realized price
	MarketPrice   float64 // tick price
	Timestamp     time.Time
	TickIndex     int64
	Success       bool   // false when the portfolio could not settle the fill
	Slippage      float64 // applied slippage fraction
	Fee           float64
	FailureReason string
}

// Notional is amount × realized price.
func (e *OrderExecution) Notional() float64 {
	return e.Amount * e.Price
}

// SlippageCost is the base-currency cost of slippage versus the tick price.
func (e *OrderExecution) SlippageCost() float64 {
	d := e.Price - e.MarketPrice
	if d < 0 {
		d = -d
	}
	return d * e.Amount
}
